// Copyright © 2024 Jeff Berkowitz (pdxjjb@gmail.com)
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.

package core

// CacheLine is one set-associative cache line (spec.md §3).
type CacheLine struct {
	Valid bool
	Dirty bool
	Tag   uint32
	Data  []byte

	lastUsed uint64
}

// Cache is component C: either the instruction or the data cache.
type Cache struct {
	Enabled   bool
	LineSize  uint32
	NWays     int
	NSets     int
	HitDelay  uint32
	MissDelay uint32
	WriteBack bool

	lines [][]CacheLine
	clock uint64
}

func NewCache(lineSize uint32, nsets, nways int, hitDelay, missDelay uint32, writeBack bool) *Cache {
	if nsets < 1 {
		nsets = 1
	}
	if nways < 1 {
		nways = 1
	}
	if lineSize == 0 {
		lineSize = 16
	}
	lines := make([][]CacheLine, nsets)
	for s := range lines {
		lines[s] = make([]CacheLine, nways)
		for w := range lines[s] {
			lines[s][w].Data = make([]byte, lineSize)
		}
	}
	return &Cache{
		LineSize: lineSize, NSets: nsets, NWays: nways,
		HitDelay: hitDelay, MissDelay: missDelay, WriteBack: writeBack,
		lines: lines,
	}
}

func (c *Cache) lineAddrParts(addr uint32) (set int, tag uint32, lineBase uint32) {
	lineIndex := addr / c.LineSize
	set = int(lineIndex % uint32(c.NSets))
	tag = lineIndex / uint32(c.NSets)
	lineBase = tag*uint32(c.NSets)*c.LineSize + uint32(set)*c.LineSize
	return
}

func (c *Cache) probe(set int, tag uint32) (way int, ok bool) {
	for i, l := range c.lines[set] {
		if l.Valid && l.Tag == tag {
			return i, true
		}
	}
	return 0, false
}

func (c *Cache) chooseVictim(set int) int {
	victim := 0
	for i, l := range c.lines[set] {
		if !l.Valid {
			return i
		}
		if l.lastUsed < c.lines[set][victim].lastUsed {
			victim = i
		}
	}
	return victim
}

// Access performs a read or write of width bytes at a physical
// address through the cache (spec.md §4.3). For writes, value is the
// data to store; for reads it is ignored and the loaded value is
// returned.
func (c *Cache) Access(as *AddressSpace, addr uint32, width int, isWrite bool, value uint32) (uint32, error) {
	if !c.Enabled {
		return c.forward(as, addr, width, isWrite, value)
	}

	set, tag, lineBase := c.lineAddrParts(addr)
	way, hit := c.probe(set, tag)

	if !hit {
		way = c.chooseVictim(set)
		line := &c.lines[set][way]
		if line.Valid && line.Dirty && c.WriteBack {
			if err := c.writeBackSet(as, set, line); err != nil {
				return 0, err
			}
		}
		for i := uint32(0); i < c.LineSize; i++ {
			v, err := as.Read8(lineBase + i)
			if err != nil {
				return 0, err
			}
			line.Data[i] = byte(v)
		}
		line.Valid = true
		line.Dirty = false
		line.Tag = tag
		as.memCycles += c.MissDelay
	}

	c.clock++
	line := &c.lines[set][way]
	line.lastUsed = c.clock
	off := addr % c.LineSize

	var result uint32
	if isWrite {
		writeBytes(line.Data, off, width, value)
		if c.WriteBack {
			line.Dirty = true
		} else {
			if _, err := c.forward(as, addr, width, true, value); err != nil {
				return 0, err
			}
		}
	} else {
		result = readBytes(line.Data, off, width)
	}
	as.memCycles += c.HitDelay
	return result, nil
}

func (c *Cache) writeBackSet(as *AddressSpace, set int, line *CacheLine) error {
	base := line.Tag*uint32(c.NSets)*c.LineSize + uint32(set)*c.LineSize
	for i := uint32(0); i < c.LineSize; i++ {
		if err := as.Write8(base+i, uint32(line.Data[i])); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) forward(as *AddressSpace, addr uint32, width int, isWrite bool, value uint32) (uint32, error) {
	if isWrite {
		switch width {
		case 1:
			return 0, as.Write8(addr, value)
		case 2:
			return 0, as.Write16(addr, value)
		default:
			return 0, as.Write32(addr, value)
		}
	}
	switch width {
	case 1:
		return as.Read8(addr)
	case 2:
		return as.Read16(addr)
	default:
		return as.Read32(addr)
	}
}

// Invalidate drops any line caching addr, for the DMA side-channel
// invalidate entry point (spec.md §4.3 coherence note: there is no
// multi-master coherence, peripheral DMA writes must invalidate
// explicitly).
func (c *Cache) Invalidate(addr uint32) {
	set, tag, _ := c.lineAddrParts(addr)
	for i := range c.lines[set] {
		if c.lines[set][i].Valid && c.lines[set][i].Tag == tag {
			c.lines[set][i].Valid = false
		}
	}
}

func readBytes(data []byte, off uint32, width int) uint32 {
	var v uint32
	for i := 0; i < width; i++ {
		v = v<<8 | uint32(data[off+uint32(i)])
	}
	return v
}

func writeBytes(data []byte, off uint32, width int, value uint32) {
	for i := width - 1; i >= 0; i-- {
		data[off+uint32(i)] = byte(value)
		value >>= 8
	}
}
