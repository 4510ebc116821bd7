package ctxprof

import "fmt"

// DiagKind classifies a diagnostic message.
type DiagKind string

const (
	DiagUnknownRecord DiagKind = "unknown_record"
	DiagUnknownBlock  DiagKind = "unknown_block"
)

// Diag records content the reader skipped. Skipping is how newer writers stay
// readable; it never fails a decode.
type Diag struct {
	Offset uint64   `json:"offset"` // bits
	Kind   DiagKind `json:"kind"`
	Msg    string   `json:"msg"`
}

func (d Diag) String() string {
	return fmt.Sprintf("[%s] bit %d: %s", d.Kind, d.Offset, d.Msg)
}

// Diags accumulates diagnostics.
type Diags struct {
	items []Diag
}

func (d *Diags) Addf(offset uint64, kind DiagKind, format string, args ...any) {
	d.items = append(d.items, Diag{Offset: offset, Kind: kind, Msg: fmt.Sprintf(format, args...)})
}

func (d *Diags) Items() []Diag { return d.items }
