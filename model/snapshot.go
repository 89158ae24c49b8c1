package model

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Snapshot is a full price list captured by one successful fetch. A snapshot
// is never modified after NewSnapshot returns it, holders share its slice.
type Snapshot struct {
	Assets     []Asset
	CapturedAt time.Time
	Seq        uint64
}

// NewSnapshot normalizes raw feed entries in feed order. Entries without an
// id and repeated ids are dropped.
func NewSnapshot(raw []Asset, capturedAt time.Time, seq uint64) Snapshot {
	assets := make([]Asset, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		if r.ID == "" {
			logrus.Debugf("Dropping feed entry %q without id", r.Name)
			continue
		}
		if _, dup := seen[r.ID]; dup {
			logrus.Debugf("Dropping duplicate feed entry %s", r.ID)
			continue
		}
		seen[r.ID] = struct{}{}
		assets = append(assets, NewAsset(r))
	}
	return Snapshot{Assets: assets, CapturedAt: capturedAt, Seq: seq}
}

func (s Snapshot) IsEmpty() bool {
	return len(s.Assets) == 0
}

func (s Snapshot) Lookup(id string) (Asset, bool) {
	for _, a := range s.Assets {
		if a.ID == id {
			return a, true
		}
	}
	return Asset{}, false
}

// Resolve finds an asset by id, falling back to a case-insensitive symbol
// match.
func (s Snapshot) Resolve(ref string) (Asset, bool) {
	if ref == "" {
		return Asset{}, false
	}
	if a, ok := s.Lookup(ref); ok {
		return a, true
	}
	for _, a := range s.Assets {
		if strings.EqualFold(a.Symbol, ref) {
			return a, true
		}
	}
	return Asset{}, false
}
