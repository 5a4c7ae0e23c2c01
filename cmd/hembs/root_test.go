package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRules = `@192.168.0.0/16	10.0.0.0/8	0 : 65535	80 : 80	0x06/0xFF
@0.0.0.0/0	10.1.2.3/32	1024 : 65535	0 : 65535	0x00/0x00
@10.0.0.0/8	0.0.0.0/0	53 : 53	53 : 53	0x11/0xFF
@0.0.0.0/0	0.0.0.0/0	0 : 65535	0 : 65535	0x00/0x00
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeRules(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "acl")
	require.NoError(t, os.WriteFile(p, []byte(testRules), 0o644))
	return p
}

func TestRoot_RandomPackets(t *testing.T) {
	rules := writeRules(t)

	out, err := execute(t, "-r", rules, "--packets", "500", "-u", "--table")
	require.NoError(t, err)
	assert.Contains(t, out, "read rules file ("+rules+" 4)")
	assert.Contains(t, out, "Enable update")
	assert.Contains(t, out, "HEM-AFBS-a5-CW16-k64 : constructionTime= ")
	assert.Contains(t, out, "avgAggBingo= ")
	assert.Contains(t, out, "avg check")
}

func TestRoot_TraceFile(t *testing.T) {
	rules := writeRules(t)
	trace := filepath.Join(t.TempDir(), "acl_trace")
	require.NoError(t, os.WriteFile(trace, []byte("3232235777\t167772161\t1024\t80\t6\t0\t0\n"), 0o644))

	out, err := execute(t, "-r", rules, "-p", trace, "-l", "3", "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "read_messages ("+trace+" 1)")
	assert.Contains(t, out, "Enable log:    level 3")
	assert.Contains(t, out, "avgCheckNum= 1.000")
}

func TestRoot_ConfigFile(t *testing.T) {
	rules := writeRules(t)
	cfg := filepath.Join(t.TempDir(), "hembs.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("ruleset: "+rules+"\ncell-width: 4\naggregate-ratio: 128\npackets: 10\n"), 0o644))

	out, err := execute(t, "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "HEM-AFBS-a5-CW4-k128")
}

func TestRoot_Errors(t *testing.T) {
	rules := writeRules(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing ruleset", nil, `required flag "ruleset"`},
		{"log level", []string{"-r", rules, "-l", "4"}, "unknown log level 4"},
		{"unknown flag", []string{"-r", rules, "-x"}, "unknown shorthand flag"},
		{"bad precedence", []string{"-r", rules, "--precedence", "random"}, "precedence"},
		{"bad cell width", []string{"-r", rules, "--cell-width", "3", "--packets", "1"}, "invalid configuration"},
		{"missing file", []string{"-r", rules + ".missing"}, "read rules"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestGen_RoundTrip(t *testing.T) {
	rules := writeRules(t)
	dir := t.TempDir()

	for _, name := range []string{"trace", "trace.zst", "trace.pcap", "trace.pcap.lz4"} {
		t.Run(name, func(t *testing.T) {
			out := filepath.Join(dir, name)
			msg, err := execute(t, "gen", "-r", rules, "-o", out, "--packets", "200", "--seed", "4")
			require.NoError(t, err)
			assert.Contains(t, msg, "wrote 200 packets")

			msg, err = execute(t, "-r", rules, "-p", out)
			require.NoError(t, err)
			assert.Contains(t, msg, "read_messages ("+out+" 200)")
			assert.True(t, strings.Contains(msg, "HEM-AFBS-a5"))
		})
	}
}
