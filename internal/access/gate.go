// Package access gates which external origins may invoke keychain
// operations. Grants are cached in replica state; escalation reaches out to
// the host wallet's confirmation dialog.
package access

import (
	"context"
	"fmt"
	"log"

	"github.com/EthSign/keychain-snap/internal/wallet"
)

// Confirmer is the dialog surface the gate escalates to.
type Confirmer interface {
	Confirm(ctx context.Context, p wallet.Prompt) (bool, error)
}

type Gate struct {
	confirm Confirmer
	logger  *log.Logger
}

func NewGate(c Confirmer, logger *log.Logger) *Gate {
	if logger == nil {
		logger = log.New(log.Writer(), "[access] ", log.LstdFlags)
	}
	return &Gate{confirm: c, logger: logger}
}

// Authorize resolves whether origin may proceed. A cached unconditional
// grant suffices for any request; anything else prompts the user. On
// approval the grant is remembered as global||elevated — an approved
// elevated request is stored as unconditional future access, so the prompt
// is not re-shown next call — and updated reports that the caller must
// persist the grant map. On rejection granted is false and the caller must
// fail the whole RPC.
func (g *Gate) Authorize(ctx context.Context, origin string, grants map[string]bool, elevated, global bool) (granted, updated bool, err error) {
	if cached, ok := grants[origin]; ok {
		if cached || (!elevated && !global) {
			return true, false, nil
		}
	}

	body := fmt.Sprintf("Allow %q to access your keychain?", origin)
	if elevated || global {
		body = fmt.Sprintf("Allow %q full access to your keychain, including all saved credentials?", origin)
	}
	ok, err := g.confirm.Confirm(ctx, wallet.Prompt{Title: "Keychain access", Body: body})
	if err != nil {
		return false, false, err
	}
	if !ok {
		g.logger.Printf("denied origin %q (elevated=%v global=%v)", origin, elevated, global)
		return false, false, nil
	}
	grants[origin] = global || elevated
	return true, true, nil
}
