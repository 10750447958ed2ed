// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package idgen hands out process-unique identifiers.
package idgen

import (
	"errors"
	"math/rand/v2"
	"net"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/sony/sonyflake"
)

// epoch is the zero point of generated ids.
var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// DefaultFlakeGenerator tags log lines with the instance that wrote them.
var DefaultFlakeGenerator = mustFlakeGenerator()

func mustFlakeGenerator() *FlakeGenerator {
	g, err := NewFlakeGenerator(epoch)
	if err != nil {
		panic(err)
	}
	return g
}

// FlakeGenerator produces roughly time-ordered int64 ids.
type FlakeGenerator struct {
	sf *sonyflake.Sonyflake
}

// NewFlakeGenerator returns a generator whose ids count from start.
func NewFlakeGenerator(start time.Time) (*FlakeGenerator, error) {
	sf, err := sonyflake.New(sonyflake.Settings{StartTime: start, MachineID: machineID})
	if err != nil {
		return nil, err
	}
	if sf == nil {
		return nil, errors.New("sonyflake: no generator for this host")
	}
	return &FlakeGenerator{sf: sf}, nil
}

// NextID returns a positive id. If the generator is exhausted it falls back
// to a random value.
func (g *FlakeGenerator) NextID() int64 {
	v, err := g.sf.NextID()
	if err != nil {
		return rand.Int64()
	}
	return int64(v)
}

// Replaced in tests.
var (
	interfaceAddrs = net.InterfaceAddrs
	hostname       = os.Hostname
)

// machineID uses the low 16 bits of the first private IPv4 address, as
// sonyflake does by default. Hosts without one (loopback-only containers,
// public-only addresses) fall back to a hash of the hostname, then to a
// random value.
func machineID() (uint16, error) {
	if ip := privateIPv4(); ip != nil {
		return uint16(ip[2])<<8 | uint16(ip[3]), nil
	}
	if name, err := hostname(); err == nil && name != "" {
		return uint16(xxhash.Sum64String(name)), nil
	}
	return uint16(rand.Uint32()), nil
}

func privateIPv4() net.IP {
	addrs, err := interfaceAddrs()
	if err != nil {
		return nil
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip := ipnet.IP.To4(); ip != nil && ip.IsPrivate() {
			return ip
		}
	}
	return nil
}
