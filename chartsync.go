// Package chartsync keeps a declarative chart document synchronized with
// one or more live, streaming tables.
//
// A chart document (plotly-style data traces + layout) arrives with some
// fields declared as "filled from table column X". The model resolves those
// declarations into a binding map, opens one column-filtered subscription
// per bound table, and on every table update writes the current column
// values into every bound document location, then notifies its observers
// with the full data region.
//
// Logging convention:
// Info is silent on normal operation except one-time initialization data,
// and otherwise carries abnormal events (dropped updates, reference misses,
// teardown on failed starts). V(2) carries per-event trace debugging.
package chartsync

import (
	"encoding/hex"
	"fmt"

	"github.com/oklog/ulid/v2"
)

// Id identifies feed instances, requests, and subscriptions. On the wire
// it is a lowercase dashed uuid string.
type Id [16]byte

func NewId() Id {
	return Id(ulid.Make())
}

func ParseId(idStr string) (Id, error) {
	switch len(idStr) {
	case 36:
		idStr = idStr[0:8] + idStr[9:13] + idStr[14:18] + idStr[19:23] + idStr[24:36]
	case 32:
	default:
		return Id{}, fmt.Errorf("cannot parse id %q", idStr)
	}
	idBytes, err := hex.DecodeString(idStr)
	if err != nil {
		return Id{}, err
	}
	var id Id
	copy(id[:], idBytes)
	return id, nil
}

func (self Id) String() string {
	return fmt.Sprintf("%x-%x-%x-%x-%x", self[0:4], self[4:6], self[6:8], self[8:10], self[10:16])
}

func (self Id) MarshalJSON() ([]byte, error) {
	return []byte(`"` + self.String() + `"`), nil
}

func (self *Id) UnmarshalJSON(src []byte) error {
	if len(src) < 2 || src[0] != '"' || src[len(src)-1] != '"' {
		return fmt.Errorf("cannot parse id json %s", src)
	}
	id, err := ParseId(string(src[1 : len(src)-1]))
	if err != nil {
		return err
	}
	*self = id
	return nil
}
