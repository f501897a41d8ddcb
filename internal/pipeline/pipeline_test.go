package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/domain"
	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/site"
)

type fakeEnv struct {
	acquireErr error
	acquired   int
	released   int
}

func (e *fakeEnv) Acquire(ctx context.Context, cred domain.Credential, slot int) (Handle, error) {
	if e.acquireErr != nil {
		return Handle{}, e.acquireErr
	}
	e.acquired++
	return Handle{Token: "tok"}, nil
}

func (e *fakeEnv) Release(ctx context.Context, cred domain.Credential, h Handle) {
	e.released++
}

type fakeAuth struct {
	status    domain.LoginStatus
	otpOK     bool
	submitted string
}

func (a *fakeAuth) Login(ctx context.Context, page site.Page, email, password string) (domain.LoginStatus, error) {
	return a.status, nil
}

func (a *fakeAuth) SubmitOTP(ctx context.Context, page site.Page, code string) (bool, error) {
	a.submitted = code
	return a.otpOK, nil
}

type fakeCodes struct {
	code string
	err  error
}

func (c *fakeCodes) Fetch(ctx context.Context, h Handle, account string) (string, error) {
	return c.code, c.err
}

type fakeActions struct {
	checkIn  domain.ActionStatus
	convert  domain.ActionStatus
	balance  float64
	streak   string
	panicMsg string

	// resyncBalance and resyncErr, when set, apply from the second
	// read on.
	resyncBalance *float64
	resyncErr     error
	balanceErr    error

	balanceReads int
}

func (a *fakeActions) CheckIn(ctx context.Context, page site.Page) domain.ActionStatus {
	if a.panicMsg != "" {
		panic(a.panicMsg)
	}
	return a.checkIn
}

func (a *fakeActions) Convert(ctx context.Context, page site.Page, balance float64) domain.ActionStatus {
	return a.convert
}

func (a *fakeActions) ConvertibleBalance(ctx context.Context, page site.Page) (float64, error) {
	a.balanceReads++
	if a.balanceErr != nil {
		return 0, a.balanceErr
	}
	if a.balanceReads > 1 {
		if a.resyncErr != nil {
			return 0, a.resyncErr
		}
		if a.resyncBalance != nil {
			return *a.resyncBalance, nil
		}
	}
	return a.balance, nil
}

func (a *fakeActions) CheckInStreak(ctx context.Context, page site.Page) string {
	return a.streak
}

type fakeSink struct {
	mu      sync.Mutex
	results []domain.Result
}

func (s *fakeSink) Upsert(results ...domain.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, results...)
	return nil
}

func (s *fakeSink) last(t *testing.T) domain.Result {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.results) == 0 {
		t.Fatal("no result persisted")
	}
	return s.results[len(s.results)-1]
}

func newTestPipeline(env *fakeEnv, auth *fakeAuth, codes *fakeCodes, actions *fakeActions, sink *fakeSink) *Pipeline {
	p := New(env, auth, codes, actions, sink, nil)
	p.Pause = 0
	p.sleep = func(ctx context.Context, d time.Duration) {}
	return p
}

func happyActions() *fakeActions {
	return &fakeActions{
		checkIn: domain.ActionStatus{State: domain.ActionDone},
		convert: domain.ActionStatus{State: domain.ActionDone},
		balance: 15000,
		streak:  "7",
	}
}

var testCred = domain.Credential{ProfileID: "p1", ProfileName: "Depin010", Email: "a@b.c", Password: "pw"}

func TestRunFullSuccess(t *testing.T) {
	env := &fakeEnv{}
	sink := &fakeSink{}
	p := newTestPipeline(env, &fakeAuth{status: domain.LoginAlreadyLoggedIn}, &fakeCodes{}, happyActions(), sink)

	result := p.Run(context.Background(), testCred, 0)

	if !result.LoginOK || !result.CheckInOK || !result.ConvertOK {
		t.Errorf("result = %+v, want all stages green", result)
	}
	if result.SharePoints != 15000 {
		t.Errorf("share = %v, want 15000", result.SharePoints)
	}
	if result.CheckInStreak != "7" {
		t.Errorf("streak = %q, want 7", result.CheckInStreak)
	}
	if env.released != 1 {
		t.Errorf("released = %d, want 1", env.released)
	}
	if persisted := sink.last(t); persisted.Key() != "Depin010" {
		t.Errorf("persisted key = %q, want Depin010", persisted.Key())
	}
}

func TestAcquireFailureIsFatal(t *testing.T) {
	env := &fakeEnv{acquireErr: errors.New("profile is running")}
	sink := &fakeSink{}
	p := newTestPipeline(env, &fakeAuth{status: domain.LoginAlreadyLoggedIn}, &fakeCodes{}, happyActions(), sink)

	result := p.Run(context.Background(), testCred, 0)

	if result.LoginOK {
		t.Error("LoginOK = true after acquire failure")
	}
	if !strings.Contains(result.Error, "environment start failed") {
		t.Errorf("error = %q, want environment start failure", result.Error)
	}
	if env.released != 0 {
		t.Error("released an environment that was never acquired")
	}
	sink.last(t) // still persisted
}

func TestOTPGateSuccess(t *testing.T) {
	auth := &fakeAuth{status: domain.LoginNeedsOTP, otpOK: true}
	sink := &fakeSink{}
	p := newTestPipeline(&fakeEnv{}, auth, &fakeCodes{code: "654321"}, happyActions(), sink)

	result := p.Run(context.Background(), testCred, 0)

	if !result.LoginOK {
		t.Errorf("result = %+v, want login success through OTP", result)
	}
	if auth.submitted != "654321" {
		t.Errorf("submitted = %q, want the fetched code", auth.submitted)
	}
}

func TestOTPTimeoutIsFatal(t *testing.T) {
	auth := &fakeAuth{status: domain.LoginNeedsOTP}
	sink := &fakeSink{}
	env := &fakeEnv{}
	p := newTestPipeline(env, auth, &fakeCodes{err: fmt.Errorf("OTP timeout (60s)")}, happyActions(), sink)

	result := p.Run(context.Background(), testCred, 0)

	if result.LoginOK {
		t.Error("LoginOK = true after OTP timeout")
	}
	if !strings.Contains(result.Error, "timeout") {
		t.Errorf("error = %q, want a timeout message", result.Error)
	}
	if env.released != 1 {
		t.Error("environment not released after fatal OTP failure")
	}
	persisted := sink.last(t)
	if !persisted.Failed() {
		t.Error("persisted result must count as failed")
	}
}

func TestCheckInSoftFailContinues(t *testing.T) {
	actions := happyActions()
	actions.checkIn = domain.ActionStatus{State: domain.ActionFailed, Message: "button not found"}
	sink := &fakeSink{}
	p := newTestPipeline(&fakeEnv{}, &fakeAuth{status: domain.LoginAlreadyLoggedIn}, &fakeCodes{}, actions, sink)

	result := p.Run(context.Background(), testCred, 0)

	if result.CheckInOK {
		t.Error("CheckInOK = true for failed check-in")
	}
	if !result.LoginOK || !result.ConvertOK {
		t.Errorf("result = %+v, want the pipeline to continue past check-in", result)
	}
	if result.Error != "" {
		t.Errorf("error = %q, soft failure must not mark the run errored", result.Error)
	}
	if actions.balanceReads == 0 {
		t.Error("secondary action never ran after check-in failure")
	}
}

func TestResyncRunsAfterFailures(t *testing.T) {
	actions := happyActions()
	actions.checkIn = domain.ActionStatus{State: domain.ActionFailed}
	actions.convert = domain.ActionStatus{State: domain.ActionFailed}
	sink := &fakeSink{}
	p := newTestPipeline(&fakeEnv{}, &fakeAuth{status: domain.LoginAlreadyLoggedIn}, &fakeCodes{}, actions, sink)

	result := p.Run(context.Background(), testCred, 0)

	if result.CheckInStreak != "7" {
		t.Errorf("streak = %q, want resync to run after soft failures", result.CheckInStreak)
	}
	// balance read in secondary and again during resync
	if actions.balanceReads < 2 {
		t.Errorf("balance reads = %d, want resync re-read", actions.balanceReads)
	}
}

func TestResyncOverwritesWithTrueZero(t *testing.T) {
	actions := happyActions()
	zero := 0.0
	actions.resyncBalance = &zero // full conversion leaves nothing behind
	sink := &fakeSink{}
	p := newTestPipeline(&fakeEnv{}, &fakeAuth{status: domain.LoginAlreadyLoggedIn}, &fakeCodes{}, actions, sink)

	result := p.Run(context.Background(), testCred, 0)

	if result.SharePoints != 0 {
		t.Errorf("share = %v, want the resynced zero balance", result.SharePoints)
	}
}

func TestResyncFailureKeepsEarlierBalance(t *testing.T) {
	actions := happyActions()
	actions.resyncErr = errors.New("page gone")
	sink := &fakeSink{}
	p := newTestPipeline(&fakeEnv{}, &fakeAuth{status: domain.LoginAlreadyLoggedIn}, &fakeCodes{}, actions, sink)

	result := p.Run(context.Background(), testCred, 0)

	if result.SharePoints != 15000 {
		t.Errorf("share = %v, want the pre-resync reading kept", result.SharePoints)
	}
}

func TestPanicPersistsAndReleases(t *testing.T) {
	actions := happyActions()
	actions.panicMsg = "selector machinery broke"
	env := &fakeEnv{}
	sink := &fakeSink{}
	p := newTestPipeline(env, &fakeAuth{status: domain.LoginAlreadyLoggedIn}, &fakeCodes{}, actions, sink)

	result := p.Run(context.Background(), testCred, 0)

	if !strings.Contains(result.Error, "panic") {
		t.Errorf("error = %q, want the panic recorded", result.Error)
	}
	if env.released != 1 {
		t.Error("environment not released after panic")
	}
	persisted := sink.last(t)
	if persisted.Error == "" {
		t.Error("panicked run persisted without error")
	}
}
