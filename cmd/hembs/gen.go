package main

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/hupe1980/hembs/blobstore"
	"github.com/hupe1980/hembs/blobstore/fetch"
	"github.com/hupe1980/hembs/classbench"
	"github.com/hupe1980/hembs/pcaptrace"
	"github.com/spf13/cobra"
)

func newGenCmd() *cobra.Command {
	var (
		ruleset string
		out     string
		packets int
		seed    uint64
		uniform bool
	)

	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate a packet trace for a rule set",
		Long: "Generate a packet trace whose headers are drawn from inside the rules of a rule set,\n" +
			"or uniformly at random with --uniform. An output ending in .pcap is written as a\n" +
			"raw IPv4 capture; .zst and .lz4 suffixes compress the output.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if out == "" {
				return errors.New(`required flag "out" not set`)
			}
			ctx := cmd.Context()

			var queries []classbench.Query
			if uniform {
				queries = classbench.RandomTrace(seed, packets)
			} else {
				if ruleset == "" {
					return errors.New(`required flag "ruleset" not set`)
				}
				rules, err := readRules(ctx, ruleset)
				if err != nil {
					return fmt.Errorf("read rules: %w", err)
				}
				queries = classbench.HeaderTrace(rules, seed, packets)
			}

			var buf bytes.Buffer
			var err error
			if isPcap(out) {
				err = pcaptrace.Write(&buf, queries)
			} else {
				err = classbench.WriteTrace(&buf, queries)
			}
			if err != nil {
				return err
			}

			store, name, err := fetch.Resolve(ctx, out)
			if err != nil {
				return err
			}
			data, err := blobstore.Compress(buf.Bytes(), blobstore.CompressionFromName(name))
			if err != nil {
				return err
			}
			if err := store.Put(ctx, name, data); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d packets to %s\n", len(queries), out)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&ruleset, flagRuleset, "r", "", "rule set file or URI")
	f.StringVarP(&out, "out", "o", "", "output file or URI")
	f.IntVar(&packets, flagPackets, 100_000, "number of packets")
	f.Uint64Var(&seed, flagSeed, 1, "random seed")
	f.BoolVar(&uniform, "uniform", false, "draw headers uniformly instead of from the rules")
	return cmd
}
