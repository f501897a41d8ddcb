package pipeline

import (
	"context"
	"fmt"

	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/cdp"
	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/domain"
	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/gpm"
	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/layout"
	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/otp"
)

// GPMEnvironment acquires browser environments from a GPM-Login
// instance, placing each window on the slot's grid position.
type GPMEnvironment struct {
	Client *gpm.Client
	Grid   layout.Config

	// WindowScale shrinks the browser UI so more windows fit on screen.
	WindowScale float64
}

// gpmHandle keeps what Release and the Gmail fetcher need.
type gpmHandle struct {
	session *cdp.Session
	page    *cdp.Client
}

// Acquire starts the profile's browser on the slot's grid position and
// connects to its first page.
func (e *GPMEnvironment) Acquire(ctx context.Context, cred domain.Credential, slot int) (Handle, error) {
	pos := layout.PositionForSlot(slot, e.Grid)

	addr, err := e.Client.Start(ctx, cred.ProfileID, &gpm.WindowOptions{
		Width:  e.Grid.WindowWidth,
		Height: e.Grid.WindowHeight,
		X:      pos.X,
		Y:      pos.Y,
		HasPos: true,
		Scale:  e.WindowScale,
	})
	if err != nil {
		return Handle{}, err
	}

	session, page, err := e.Client.Connect(ctx, addr)
	if err != nil {
		// the browser is up but unreachable; stop it so it cannot leak
		e.Client.Stop(ctx, cred.ProfileID)
		return Handle{}, err
	}

	return Handle{Page: page, Token: &gpmHandle{session: session, page: page}}, nil
}

// Release disconnects locally and tells GPM to close the browser. Both
// steps are best-effort.
func (e *GPMEnvironment) Release(ctx context.Context, cred domain.Credential, h Handle) {
	if gh, ok := h.Token.(*gpmHandle); ok {
		e.Client.Disconnect(gh.page)
	}
	e.Client.Stop(ctx, cred.ProfileID)
}

// GmailFetcher fetches verification codes from the profile's Gmail
// session, opened in a tab of the same acquired browser.
type GmailFetcher struct {
	Extractor *otp.Extractor
}

// Fetch polls the mailbox for a code.
func (f *GmailFetcher) Fetch(ctx context.Context, h Handle, account string) (string, error) {
	gh, ok := h.Token.(*gpmHandle)
	if !ok || gh.session == nil {
		return "", fmt.Errorf("no browser session for mailbox access")
	}
	return f.Extractor.Extract(ctx, gh.session, account)
}
