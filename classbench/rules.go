package classbench

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"strconv"
	"strings"

	"github.com/hupe1980/hembs/model"
)

const maxLineBytes = 1 << 20

func newScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return sc
}

// ReadRules parses a rule set. Blank lines are skipped; every other line must
// be a rule.
func ReadRules(r io.Reader) ([]model.Rule, error) {
	var rules []model.Rule

	sc := newScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		rule, err := ParseRule(text)
		if err != nil {
			var pe *ParseError
			if errors.As(err, &pe) {
				pe.Line = line
				return nil, pe
			}
			return nil, &ParseError{Line: line, Err: err}
		}
		rule.ID = uint32(len(rules))
		rules = append(rules, rule)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

// ParseRule parses a single rule line. The returned rule has ID 0.
func ParseRule(text string) (model.Rule, error) {
	text, ok := strings.CutPrefix(strings.TrimSpace(text), "@")
	if !ok {
		return model.Rule{}, &ParseError{Err: errors.New("missing leading '@'")}
	}

	// sip dip slo : shi dlo : dhi proto/mask [flags...]
	f := strings.Fields(text)
	if len(f) < 9 || f[3] != ":" || f[6] != ":" {
		return model.Rule{}, &ParseError{Err: fmt.Errorf("want 5 fields, got %q", text)}
	}

	var (
		rule model.Rule
		err  error
	)
	if rule.SrcIP, err = parsePrefix(f[0]); err != nil {
		return model.Rule{}, &ParseError{Field: "source prefix", Err: err}
	}
	if rule.DstIP, err = parsePrefix(f[1]); err != nil {
		return model.Rule{}, &ParseError{Field: "destination prefix", Err: err}
	}
	if rule.SrcPort, err = parseRange(f[2], f[4]); err != nil {
		return model.Rule{}, &ParseError{Field: "source port", Err: err}
	}
	if rule.DstPort, err = parseRange(f[5], f[7]); err != nil {
		return model.Rule{}, &ParseError{Field: "destination port", Err: err}
	}
	if rule.Proto, err = parseProto(f[8]); err != nil {
		return model.Rule{}, &ParseError{Field: "protocol", Err: err}
	}
	return rule, nil
}

func parsePrefix(s string) (netip.Prefix, error) {
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	if !p.Addr().Is4() {
		return netip.Prefix{}, fmt.Errorf("%q is not IPv4", s)
	}
	return p.Masked(), nil
}

func parseRange(lo, hi string) (model.PortRange, error) {
	l, err := strconv.ParseUint(lo, 10, 16)
	if err != nil {
		return model.PortRange{}, err
	}
	h, err := strconv.ParseUint(hi, 10, 16)
	if err != nil {
		return model.PortRange{}, err
	}
	if l > h {
		return model.PortRange{}, fmt.Errorf("inverted range %d : %d", l, h)
	}
	return model.PortRange{Lo: uint16(l), Hi: uint16(h)}, nil
}

func parseProto(s string) (model.Protocol, error) {
	v, m, ok := strings.Cut(s, "/")
	if !ok {
		return model.Protocol{}, fmt.Errorf("want value/mask, got %q", s)
	}
	val, err := strconv.ParseUint(v, 0, 8)
	if err != nil {
		return model.Protocol{}, err
	}
	mask, err := strconv.ParseUint(m, 0, 8)
	if err != nil {
		return model.Protocol{}, err
	}
	switch mask {
	case 0xFF:
		return model.Proto(uint8(val)), nil
	case 0x00:
		return model.AnyProto, nil
	default:
		return model.Protocol{}, fmt.Errorf("unsupported mask %#02x", mask)
	}
}

// WriteRules writes rules in ClassBench notation, one per line.
func WriteRules(w io.Writer, rules []model.Rule) error {
	bw := bufio.NewWriter(w)
	for _, r := range rules {
		if _, err := fmt.Fprintln(bw, r.String()); err != nil {
			return err
		}
	}
	return bw.Flush()
}
