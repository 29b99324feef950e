package scan

import (
	"sync/atomic"

	"github.com/MeKo-Tech/barscan/internal/barcode"
)

// Session holds the control-layer state read by the stage once per frame.
// All methods are safe for concurrent use.
type Session struct {
	paused      atomic.Bool
	cropEnabled atomic.Bool
	torch       atomic.Bool
	pendingSave atomic.Bool
	opts        atomic.Pointer[barcode.Options]
}

// SessionState is a point-in-time copy of a Session.
type SessionState struct {
	Paused      bool   `json:"paused"       yaml:"paused"`
	CropEnabled bool   `json:"crop"         yaml:"crop"`
	Torch       bool   `json:"torch"        yaml:"torch"`
	PendingSave bool   `json:"pending_save" yaml:"pending_save"`
	Options     string `json:"options"      yaml:"options"`
}

// NewSession returns an unpaused session holding opts.
func NewSession(opts barcode.Options) *Session {
	s := &Session{}
	s.SetOptions(opts)
	return s
}

func (s *Session) Paused() bool { return s.paused.Load() }
func (s *Session) SetPaused(v bool) { s.paused.Store(v) }
func (s *Session) CropEnabled() bool { return s.cropEnabled.Load() }
func (s *Session) SetCropEnabled(v bool) { s.cropEnabled.Store(v) }

// TorchEnabled is forwarded to sources implementing frame.Torch. The stage
// never reads it.
func (s *Session) TorchEnabled() bool { return s.torch.Load() }
func (s *Session) SetTorchEnabled(v bool) { s.torch.Store(v) }

// RequestSave asks for the next processed frame to be dumped.
func (s *Session) RequestSave() { s.pendingSave.Store(true) }

// SaveRequested reports whether a dump is pending without consuming it.
func (s *Session) SaveRequested() bool { return s.pendingSave.Load() }

// TakeSaveRequest clears a pending request and reports whether there was
// one. Of any number of concurrent callers at most one sees true.
func (s *Session) TakeSaveRequest() bool { return s.pendingSave.Swap(false) }

// Options returns the current reader options snapshot.
func (s *Session) Options() barcode.Options {
	if p := s.opts.Load(); p != nil {
		return *p
	}
	return barcode.DefaultOptions()
}

// SetOptions publishes a new snapshot. The previous one is never modified.
func (s *Session) SetOptions(opts barcode.Options) {
	s.opts.Store(&opts)
}

// UpdateOptions applies fn to the current snapshot and publishes the
// result, retrying if another writer got there first.
func (s *Session) UpdateOptions(fn func(barcode.Options) barcode.Options) barcode.Options {
	for {
		old := s.opts.Load()
		cur := barcode.DefaultOptions()
		if old != nil {
			cur = *old
		}
		next := fn(cur)
		if s.opts.CompareAndSwap(old, &next) {
			return next
		}
	}
}

// State returns a copy of the session flags.
func (s *Session) State() SessionState {
	return SessionState{
		Paused:      s.Paused(),
		CropEnabled: s.CropEnabled(),
		Torch:       s.TorchEnabled(),
		PendingSave: s.SaveRequested(),
		Options:     s.Options().String(),
	}
}
