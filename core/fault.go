package core

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/signalsfoundry/leo-route-optimizer/model"
)

// faultModulus selects roughly one satellite in five during a solar storm.
const faultModulus = 5

// FaultModel decides which satellites are knocked out by the simulated solar
// storm. Selection is a seeded hash of the identifier, so a given (seed, id)
// pair is always treated the same way while the storm is active.
type FaultModel struct {
	Active bool
	Seed   uint64
}

// IsDisabled reports whether the satellite is excluded from routing.
func (f FaultModel) IsDisabled(id string) bool {
	if !f.Active {
		return false
	}
	return faultHash(f.Seed, id)%faultModulus == 0
}

// DisabledSet returns the IDs in sats that are currently disabled, in
// snapshot order. It is never nil.
func (f FaultModel) DisabledSet(sats []model.Satellite) []string {
	out := []string{}
	if !f.Active {
		return out
	}
	for _, s := range sats {
		if f.IsDisabled(s.ID) {
			out = append(out, s.ID)
		}
	}
	return out
}

func faultHash(seed uint64, id string) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], seed)
	d := xxhash.New()
	_, _ = d.Write(buf[:])
	_, _ = d.WriteString(id)
	return d.Sum64()
}
