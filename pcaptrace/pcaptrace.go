// Package pcaptrace turns an offline pcap capture into classifier queries.
//
// Only IPv4 packets are used. TCP and UDP packets carry their ports; every
// other IPv4 payload is queried with ports 0. Live capture is not supported.
package pcaptrace

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"slices"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcapgo"
	"github.com/hupe1980/hembs/classbench"
	"github.com/hupe1980/hembs/model"
)

// ErrLinkType is returned for a capture whose link type cannot carry IPv4.
var ErrLinkType = errors.New("pcaptrace: unsupported link type")

// Stats summarizes a Read.
type Stats struct {
	// Packets is the number of records in the capture.
	Packets int
	// Skipped counts records that were not IPv4 or failed to decode.
	Skipped int
}

type decoder struct {
	eth    layers.Ethernet
	ip4    layers.IPv4
	tcp    layers.TCP
	udp    layers.UDP
	parser *gopacket.DecodingLayerParser
	types  []gopacket.LayerType
}

func newDecoder(lt layers.LinkType) (*decoder, error) {
	d := &decoder{}

	var first gopacket.LayerType
	switch lt {
	case layers.LinkTypeEthernet:
		first = layers.LayerTypeEthernet
	case layers.LinkTypeRaw, layers.LinkTypeIPv4:
		first = layers.LayerTypeIPv4
	default:
		return nil, fmt.Errorf("%w: %s", ErrLinkType, lt)
	}

	d.parser = gopacket.NewDecodingLayerParser(first, &d.eth, &d.ip4, &d.tcp, &d.udp)
	d.parser.IgnoreUnsupported = true
	return d, nil
}

// decode returns the query of one record. ok is false if the record holds no
// IPv4 header.
func (d *decoder) decode(data []byte) (classbench.Query, bool) {
	// A truncated transport header still leaves a usable IPv4 header.
	_ = d.parser.DecodeLayers(data, &d.types)
	if !slices.Contains(d.types, layers.LayerTypeIPv4) {
		return classbench.Query{}, false
	}

	p := model.Packet{
		SrcIP: addr4(d.ip4.SrcIP),
		DstIP: addr4(d.ip4.DstIP),
		Proto: uint8(d.ip4.Protocol),
	}
	for _, t := range d.types {
		switch t {
		case layers.LayerTypeTCP:
			p.SrcPort, p.DstPort = uint16(d.tcp.SrcPort), uint16(d.tcp.DstPort)
		case layers.LayerTypeUDP:
			p.SrcPort, p.DstPort = uint16(d.udp.SrcPort), uint16(d.udp.DstPort)
		}
	}
	return classbench.Query{Packet: p, Expected: classbench.NoExpectation}, true
}

// Read decodes every record of a pcap stream.
func Read(r io.Reader) ([]classbench.Query, Stats, error) {
	var stats Stats

	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, stats, fmt.Errorf("pcaptrace: %w", err)
	}
	d, err := newDecoder(pr.LinkType())
	if err != nil {
		return nil, stats, err
	}

	var queries []classbench.Query
	for {
		data, _, err := pr.ZeroCopyReadPacketData()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("pcaptrace: record %d: %w", stats.Packets+1, err)
		}
		stats.Packets++

		q, ok := d.decode(data)
		if !ok {
			stats.Skipped++
			continue
		}
		queries = append(queries, q)
	}
	return queries, stats, nil
}

// Write encodes queries as a raw IPv4 capture. TCP and UDP queries get a
// transport header; any other protocol gets an empty payload.
func Write(w io.Writer, queries []classbench.Query) error {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(65535, layers.LinkTypeRaw); err != nil {
		return fmt.Errorf("pcaptrace: %w", err)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}

	for i, q := range queries {
		p := q.Packet
		ip := &layers.IPv4{
			Version:  4,
			IHL:      5,
			TTL:      64,
			Protocol: layers.IPProtocol(p.Proto),
			SrcIP:    p.SrcIP.AsSlice(),
			DstIP:    p.DstIP.AsSlice(),
		}

		ls := []gopacket.SerializableLayer{ip}
		switch p.Proto {
		case model.ProtoTCP:
			ls = append(ls, &layers.TCP{SrcPort: layers.TCPPort(p.SrcPort), DstPort: layers.TCPPort(p.DstPort), Window: 65535})
		case model.ProtoUDP:
			ls = append(ls, &layers.UDP{SrcPort: layers.UDPPort(p.SrcPort), DstPort: layers.UDPPort(p.DstPort)})
		}

		if err := gopacket.SerializeLayers(buf, opts, ls...); err != nil {
			return fmt.Errorf("pcaptrace: query %d: %w", i, err)
		}
		data := buf.Bytes()
		ci := gopacket.CaptureInfo{CaptureLength: len(data), Length: len(data)}
		if err := pw.WritePacket(ci, data); err != nil {
			return fmt.Errorf("pcaptrace: query %d: %w", i, err)
		}
	}
	return nil
}

func addr4(ip net.IP) netip.Addr {
	a, _ := netip.AddrFromSlice(ip.To4())
	return a
}
