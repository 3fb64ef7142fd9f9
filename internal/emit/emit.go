// Package emit serializes a resolved pallet into the document handed to the
// backend. The canonical form is the one that gets hashed; the indented form
// is the same document for humans.
package emit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/roach88/nao/internal/ir"
	"github.com/roach88/nao/internal/resolver"
)

// Format selects how Write lays out the document.
type Format string

const (
	FormatCanonical Format = "canonical"
	FormatIndented  Format = "indented"
)

// Emitted is a serialized pallet and its content-addressed ID.
type Emitted struct {
	ID        string
	Keys      []string
	Canonical []byte
}

// Document builds the backend document for a pallet:
//
//	{"packages": [<package>...], "version": "<IR version>"}
func Document(p *resolver.Pallet) ir.IRValue {
	pkgs := make(ir.IRArray, len(p.Units))
	for i, u := range p.Units {
		pkgs[i] = ir.Encode(u.Package)
	}
	return ir.IRObject{
		"version":  ir.IRString(ir.IRVersion),
		"packages": pkgs,
	}
}

// Emit serializes p canonically and computes its ID.
func Emit(p *resolver.Pallet) (*Emitted, error) {
	canonical, err := ir.MarshalCanonical(Document(p))
	if err != nil {
		return nil, fmt.Errorf("emit: %w", err)
	}
	return &Emitted{
		ID:        ir.PalletID(canonical),
		Keys:      p.Keys(),
		Canonical: canonical,
	}, nil
}

// Indented returns the canonical document re-indented with two spaces.
func (e *Emitted) Indented() ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, e.Canonical, "", "  "); err != nil {
		return nil, fmt.Errorf("emit: indent pallet %s: %w", e.ID, err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Write emits p to w in the given format and returns what was written.
func Write(w io.Writer, p *resolver.Pallet, format Format) (*Emitted, error) {
	e, err := Emit(p)
	if err != nil {
		return nil, err
	}
	out := e.Canonical
	switch format {
	case FormatCanonical, "":
	case FormatIndented:
		if out, err = e.Indented(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("emit: unknown format %q", format)
	}
	if _, err := w.Write(out); err != nil {
		return nil, fmt.Errorf("emit: %w", err)
	}
	return e, nil
}
