// Package rpc is the method boundary the host wallet's plugin dispatcher
// calls into. It is the one place where anomalies become hard failures:
// unknown methods and missing parameters error out, denied access fails the
// whole call, and everything beneath degrades gracefully instead.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/EthSign/keychain-snap/internal/access"
	"github.com/EthSign/keychain-snap/internal/audit"
	"github.com/EthSign/keychain-snap/internal/keychain"
)

var (
	ErrUnknownMethod = errors.New("rpc: unknown method")
	ErrAccessDenied  = errors.New("rpc: access denied")
	ErrMissingParam  = errors.New("rpc: missing required param")
)

// Result is the structured outcome for data-bearing methods.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

type Dispatcher struct {
	svc    *keychain.Service
	gate   *access.Gate
	trail  *audit.Log
	logger *log.Logger
}

func NewDispatcher(svc *keychain.Service, gate *access.Gate, trail *audit.Log, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.New(log.Writer(), "[rpc] ", log.LstdFlags)
	}
	return &Dispatcher{svc: svc, gate: gate, trail: trail, logger: logger}
}

// methodAccess maps each method to the access level it demands.
var methodAccess = map[string]struct{ elevated, global bool }{
	"sync":            {},
	"set_sync_to":     {elevated: true},
	"get_sync_to":     {},
	"set_neversave":   {},
	"set_password":    {},
	"get_password":    {elevated: true},
	"remove_password": {},
	"registry":        {},
	"encrypt":         {},
	"decrypt":         {},
	"export":          {elevated: true, global: true},
	"import":          {elevated: true},
}

// Handle authorizes the origin and dispatches one RPC call.
func (d *Dispatcher) Handle(ctx context.Context, origin, method string, params json.RawMessage) (any, error) {
	req, ok := methodAccess[method]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}

	granted, err := d.svc.Authorize(ctx, d.gate, origin, req.elevated, req.global)
	if err != nil {
		return nil, err
	}
	if !granted {
		return nil, fmt.Errorf("%w: origin %q", ErrAccessDenied, origin)
	}
	if d.trail != nil {
		d.trail.Record(origin, method)
	}

	return d.call(ctx, method, params)
}

func (d *Dispatcher) call(ctx context.Context, method string, params json.RawMessage) (any, error) {
	switch method {
	case "sync":
		if err := d.svc.Sync(ctx); err != nil {
			return nil, err
		}
		return "OK", nil

	case "set_sync_to":
		var p struct {
			Data string `json:"data"`
		}
		if err := parse(params, &p); err != nil {
			return nil, err
		}
		if p.Data == "" {
			return nil, fmt.Errorf("%w: data", ErrMissingParam)
		}
		return d.svc.SetSyncTo(ctx, p.Data)

	case "get_sync_to":
		return d.svc.GetSyncTo(ctx)

	case "set_neversave":
		var p struct {
			Website   string `json:"website"`
			NeverSave *bool  `json:"neverSave"`
		}
		if err := parse(params, &p); err != nil {
			return nil, err
		}
		if p.Website == "" || p.NeverSave == nil {
			return nil, fmt.Errorf("%w: website, neverSave", ErrMissingParam)
		}
		if err := d.svc.SetNeverSave(ctx, p.Website, *p.NeverSave); err != nil {
			return nil, err
		}
		return "OK", nil

	case "set_password":
		var p struct {
			Website    string `json:"website"`
			Username   string `json:"username"`
			Password   string `json:"password"`
			Controlled string `json:"controlled,omitempty"`
		}
		if err := parse(params, &p); err != nil {
			return nil, err
		}
		if p.Website == "" || p.Username == "" || p.Password == "" {
			return nil, fmt.Errorf("%w: website, username, password", ErrMissingParam)
		}
		if err := d.svc.SetPassword(ctx, p.Website, p.Username, p.Password, p.Controlled); err != nil {
			return nil, err
		}
		return "OK", nil

	case "get_password":
		var p struct {
			Website string `json:"website"`
		}
		if err := parse(params, &p); err != nil {
			return nil, err
		}
		if p.Website == "" {
			return nil, fmt.Errorf("%w: website", ErrMissingParam)
		}
		return d.svc.GetPassword(ctx, p.Website)

	case "remove_password":
		var p struct {
			Website  string `json:"website"`
			Username string `json:"username"`
		}
		if err := parse(params, &p); err != nil {
			return nil, err
		}
		if p.Website == "" || p.Username == "" {
			return nil, fmt.Errorf("%w: website, username", ErrMissingParam)
		}
		if err := d.svc.RemovePassword(ctx, p.Website, p.Username); err != nil {
			return nil, err
		}
		return "OK", nil

	case "registry":
		var p struct {
			Address string `json:"address"`
		}
		if err := parse(params, &p); err != nil {
			return nil, err
		}
		if p.Address == "" {
			return nil, fmt.Errorf("%w: address", ErrMissingParam)
		}
		return d.svc.LookupRegistry(ctx, p.Address)

	case "encrypt":
		var p struct {
			Address string `json:"address"`
			Data    string `json:"data"`
		}
		if err := parse(params, &p); err != nil {
			return nil, err
		}
		if p.Address == "" || p.Data == "" {
			return nil, fmt.Errorf("%w: address, data", ErrMissingParam)
		}
		out, err := d.svc.EncryptFor(ctx, p.Address, []byte(p.Data))
		if err != nil {
			return failure(err), nil
		}
		return Result{Success: true, Data: out}, nil

	case "decrypt":
		var p struct {
			Data string `json:"data"`
		}
		if err := parse(params, &p); err != nil {
			return nil, err
		}
		if p.Data == "" {
			return nil, fmt.Errorf("%w: data", ErrMissingParam)
		}
		out, err := d.svc.DecryptDirected(ctx, p.Data)
		if err != nil {
			return failure(err), nil
		}
		return Result{Success: true, Data: string(out)}, nil

	case "export":
		out, err := d.svc.Export(ctx)
		if err != nil {
			return failure(err), nil
		}
		return Result{Success: true, Data: out}, nil

	case "import":
		var p struct {
			Data string `json:"data"`
		}
		if err := parse(params, &p); err != nil {
			return nil, err
		}
		if p.Data == "" {
			return nil, fmt.Errorf("%w: data", ErrMissingParam)
		}
		if err := d.svc.Import(ctx, p.Data); err != nil {
			return failure(err), nil
		}
		return Result{Success: true}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
}

func parse(params json.RawMessage, into any) error {
	if len(params) == 0 {
		return fmt.Errorf("%w: params", ErrMissingParam)
	}
	if err := json.Unmarshal(params, into); err != nil {
		return fmt.Errorf("rpc: bad params: %w", err)
	}
	return nil
}

func failure(err error) Result {
	return Result{Success: false, Message: err.Error()}
}
