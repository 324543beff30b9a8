package fether

import (
	"encoding/binary"
	"fmt"
	"net"
)

// Offsets within the Ethernet header.
const (
	dstOffset  = 0
	srcOffset  = 6
	typeOffset = 12
)

const (
	// AddrSize is the length of a MAC address.
	AddrSize = 6

	// HeaderSize is the length of an untagged Ethernet header:
	// destination and source MAC addresses plus the EtherType.
	HeaderSize = 2*AddrSize + 2
)

// EtherType identifies the protocol encapsulated in a frame.
type EtherType uint16

const (
	TypeIPv4           EtherType = 0x0800
	TypeARP            EtherType = 0x0806
	TypeVLAN           EtherType = 0x8100
	TypeIPv6           EtherType = 0x86DD
	TypePPPoEDiscovery EtherType = 0x8863
	TypePPPoESession   EtherType = 0x8864
)

func (t EtherType) String() string {
	switch t {
	case TypeIPv4:
		return "IPv4"
	case TypeARP:
		return "ARP"
	case TypeVLAN:
		return "VLAN"
	case TypeIPv6:
		return "IPv6"
	case TypePPPoEDiscovery:
		return "PPPoE-Discovery"
	case TypePPPoESession:
		return "PPPoE-Session"
	default:
		return fmt.Sprintf("0x%04x", uint16(t))
	}
}

// Header is a view over the first [HeaderSize] bytes of a frame.
// Accessors panic if the slice is shorter than HeaderSize;
// use [ParseHeader] on untrusted input.
type Header []byte

// ParseHeader returns the header of frame,
// or an error if frame is too short to contain one.
func ParseHeader(frame []byte) (Header, error) {
	if len(frame) < HeaderSize {
		return nil, fmt.Errorf(
			"frame of %d bytes is shorter than Ethernet header (%d bytes)",
			len(frame), HeaderSize,
		)
	}
	return Header(frame[:HeaderSize]), nil
}

// Destination returns the destination MAC address.
// The returned address aliases the frame.
func (h Header) Destination() net.HardwareAddr {
	return net.HardwareAddr(h[dstOffset : dstOffset+AddrSize])
}

// Source returns the source MAC address.
// The returned address aliases the frame.
func (h Header) Source() net.HardwareAddr {
	return net.HardwareAddr(h[srcOffset : srcOffset+AddrSize])
}

// Type returns the EtherType.
func (h Header) Type() EtherType {
	return EtherType(binary.BigEndian.Uint16(h[typeOffset:]))
}

// Fields are the decoded contents of a [Header].
type Fields struct {
	Dst, Src net.HardwareAddr
	Type     EtherType
}

// Encode writes f into h.
// Addresses shorter than [AddrSize] are zero padded.
func (h Header) Encode(f Fields) {
	clear(h[:typeOffset])
	copy(h[dstOffset:dstOffset+AddrSize], f.Dst)
	copy(h[srcOffset:srcOffset+AddrSize], f.Src)
	binary.BigEndian.PutUint16(h[typeOffset:], uint16(f.Type))
}

// AppendFrame appends a complete frame with header f and the given payload to dst.
func AppendFrame(dst []byte, f Fields, payload []byte) []byte {
	start := len(dst)
	dst = append(dst, make([]byte, HeaderSize)...)
	Header(dst[start:]).Encode(f)
	return append(dst, payload...)
}
