// Package pipeline runs one profile through the full check-in flow:
// acquire a hosted browser, authenticate (with an OTP challenge when
// the site asks for one), perform the daily check-in and the SHARE
// conversion, resync the on-site state, and release the browser.
//
// Failure semantics differ per stage. Environment acquisition,
// authentication and the OTP gate are fatal for the profile; check-in
// and convert are soft failures that never stop the flow; the resync
// stage is best-effort. Whatever happens, the result is persisted
// before Run returns.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/domain"
	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/site"
	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/telemetry"
)

// Stage names the pipeline's states for log lines.
type Stage string

const (
	StageAcquire   Stage = "acquire_environment"
	StageAuth      Stage = "authenticate"
	StageOTP       Stage = "otp_gate"
	StagePrimary   Stage = "check_in"
	StageSecondary Stage = "convert"
	StageResync    Stage = "state_resync"
	StageFinalize  Stage = "finalize"
)

// Handle is an acquired browser environment: the driven page plus an
// opaque token the Environment needs to release it.
type Handle struct {
	Page  site.Page
	Token any
}

// Environment acquires and releases hosted browser environments.
// Release is called on every path, including after a failed acquire
// flow, and must be safe to call with whatever Acquire returned.
type Environment interface {
	Acquire(ctx context.Context, cred domain.Credential, slot int) (Handle, error)
	Release(ctx context.Context, cred domain.Credential, h Handle)
}

// Authenticator drives the login flow on an acquired page.
type Authenticator interface {
	Login(ctx context.Context, page site.Page, email, password string) (domain.LoginStatus, error)
	SubmitOTP(ctx context.Context, page site.Page, code string) (bool, error)
}

// CodeFetcher obtains the login verification code once a challenge has
// been issued.
type CodeFetcher interface {
	Fetch(ctx context.Context, h Handle, account string) (string, error)
}

// ActionDriver performs the on-site actions and state reads.
type ActionDriver interface {
	CheckIn(ctx context.Context, page site.Page) domain.ActionStatus
	Convert(ctx context.Context, page site.Page, balance float64) domain.ActionStatus
	ConvertibleBalance(ctx context.Context, page site.Page) (float64, error)
	CheckInStreak(ctx context.Context, page site.Page) string
}

// ResultSink persists results. Upsert must be safe for concurrent use.
type ResultSink interface {
	Upsert(results ...domain.Result) error
}

// Pipeline wires the leaf services for one batch; Run is safe to call
// from many goroutines at once.
type Pipeline struct {
	Env     Environment
	Auth    Authenticator
	Codes   CodeFetcher
	Actions ActionDriver
	Results ResultSink
	Logger  *slog.Logger

	// Pause spaces the stages out so the site sees human-ish pacing.
	Pause time.Duration

	sleep func(ctx context.Context, d time.Duration)
}

// New builds a pipeline. All dependencies are required except Logger.
func New(env Environment, auth Authenticator, codes CodeFetcher, actions ActionDriver, results ResultSink, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		Env:     env,
		Auth:    auth,
		Codes:   codes,
		Actions: actions,
		Results: results,
		Logger:  logger,
		Pause:   2 * time.Second,
		sleep:   sleepCtx,
	}
}

// Run drives one profile through every stage and returns its result.
// The result is handed to the sink before Run returns, on every path,
// panics included.
func (p *Pipeline) Run(ctx context.Context, cred domain.Credential, slot int) (result domain.Result) {
	logger := telemetry.WithProfile(p.Logger, cred.Key())
	result = domain.Result{
		ProfileID:   cred.ProfileID,
		ProfileName: cred.ProfileName,
		Email:       cred.Email,
		Timestamp:   time.Now(),
	}

	var handle Handle
	acquired := false

	defer func() {
		if r := recover(); r != nil {
			result.Error = fmt.Sprintf("panic: %v", r)
			logger.Error("pipeline panicked", "stage", StageFinalize, "panic", r)
		}
		if acquired {
			p.Env.Release(ctx, cred, handle)
		}
		if err := p.Results.Upsert(result); err != nil {
			logger.Error("failed to persist result", "error", err)
		}
		if result.Error != "" {
			logger.Error("profile failed", "error", result.Error)
		} else {
			logger.Info("profile done",
				"check_in", result.CheckInOK, "convert", result.ConvertOK,
				"share", result.SharePoints, "streak", result.CheckInStreak)
		}
	}()

	// AcquireEnvironment: fatal on failure, nothing else can run
	logger.Info("starting", "stage", StageAcquire, "slot", slot)
	h, err := p.Env.Acquire(ctx, cred, slot)
	if err != nil {
		result.Error = fmt.Sprintf("environment start failed: %v", err)
		return result
	}
	handle = h
	acquired = true
	p.sleep(ctx, p.Pause)

	// Authenticate, with the OTP gate when a challenge is issued
	if err := p.authenticate(ctx, logger, cred, handle); err != nil {
		result.Error = err.Error()
		return result
	}
	result.LoginOK = true
	p.sleep(ctx, p.Pause)

	// PrimaryAction: soft fail, always continue
	logger.Info("starting", "stage", StagePrimary)
	checkIn := p.Actions.CheckIn(ctx, handle.Page)
	result.CheckInOK = checkIn.OK()
	if !checkIn.OK() {
		logger.Warn("check-in failed, continuing", "message", checkIn.Message)
	} else {
		logger.Info("check-in", "state", checkIn.State, "message", checkIn.Message)
	}
	p.sleep(ctx, p.Pause)

	// SecondaryAction: soft fail, driven by the observed balance
	logger.Info("starting", "stage", StageSecondary)
	balance, err := p.Actions.ConvertibleBalance(ctx, handle.Page)
	if err != nil {
		logger.Warn("balance read failed, treating as zero", "error", err)
	}
	result.SharePoints = balance
	convert := p.Actions.Convert(ctx, handle.Page, balance)
	result.ConvertOK = convert.OK()
	if !convert.OK() {
		logger.Warn("convert failed, continuing", "message", convert.Message)
	} else {
		logger.Info("convert", "state", convert.State, "message", convert.Message)
	}
	p.sleep(ctx, p.Pause)

	// StateResync: best-effort, runs regardless of action outcomes so
	// the stored row reflects the site's actual state
	logger.Info("starting", "stage", StageResync)
	if synced, err := p.Actions.ConvertibleBalance(ctx, handle.Page); err == nil {
		result.SharePoints = synced
	} else {
		logger.Warn("balance resync failed, keeping earlier reading", "error", err)
	}
	result.CheckInStreak = p.Actions.CheckInStreak(ctx, handle.Page)

	return result
}

// authenticate runs the Authenticate and OtpGate stages. Any error is
// fatal for the profile.
func (p *Pipeline) authenticate(ctx context.Context, logger *slog.Logger, cred domain.Credential, h Handle) error {
	logger.Info("starting", "stage", StageAuth)
	status, err := p.Auth.Login(ctx, h.Page, cred.Email, cred.Password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	switch status {
	case domain.LoginAlreadyLoggedIn, domain.LoginSuccess:
		return nil
	case domain.LoginNeedsOTP:
		logger.Info("starting", "stage", StageOTP)
		code, err := p.Codes.Fetch(ctx, h, cred.Email)
		if err != nil {
			return fmt.Errorf("OTP verification failed: %v", err)
		}
		ok, err := p.Auth.SubmitOTP(ctx, h.Page, code)
		if err != nil {
			return fmt.Errorf("OTP verification failed: %v", err)
		}
		if !ok {
			return fmt.Errorf("OTP verification failed: code rejected")
		}
		return nil
	default:
		return fmt.Errorf("login failed")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
