// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	linker "github.com/AleutianAI/EntityLink/services/linker"
	"github.com/AleutianAI/EntityLink/services/linker/alto"
	"github.com/AleutianAI/EntityLink/services/linker/similarity"
)

// Command flag values.
var (
	explain      bool
	watch        bool
	watchSettle  time.Duration
	metaphoneLen int
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [MENTION...]",
	Short: "Resolve mentions, prompting for one when none are given on a terminal",
	RunE:  runResolveCommand,
}

var batchCmd = &cobra.Command{
	Use:   "batch FILE",
	Short: "Resolve one mention per line of FILE (- for stdin) and print JSON lines",
	Args:  cobra.ExactArgs(1),
	RunE:  runBatchCommand,
}

var annotateCmd = &cobra.Command{
	Use:   "annotate SRC DST",
	Short: "Write entity URIs into the ALTO documents under SRC, saving them under DST",
	Long: `Annotate every ALTO document below SRC and write it to the same relative
path below DST. SRC and DST are directories or gs://bucket/prefix locations.
With --watch, SRC must be a local directory; files created or changed after
the first pass are annotated as they appear.`,
	Args: cobra.ExactArgs(2),
	RunE: runAnnotateCommand,
}

var compareCmd = &cobra.Command{
	Use:   "compare A B",
	Short: "Compare two strings with every similarity metric",
	Args:  cobra.ExactArgs(2),
	RunE:  runCompareCommand,
}

var phoneticCmd = &cobra.Command{
	Use:   "phonetic NAME...",
	Short: "Print the phonetic codes of each name",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPhoneticCommand,
}

func init() {
	resolveCmd.Flags().BoolVar(&explain, "explain", false, "Show every scored label variant")
	annotateCmd.Flags().BoolVar(&watch, "watch", false, "Keep annotating new or changed files")
	annotateCmd.Flags().DurationVar(&watchSettle, "settle", alto.DefaultSettle, "Quiet time before a changed file is annotated")
	phoneticCmd.Flags().IntVar(&metaphoneLen, "metaphone-length", similarity.DefaultMetaphoneLength, "Maximum Metaphone code length")
}

func runResolveCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	mentions := args
	if len(mentions) == 0 {
		if !isatty.IsTerminal(os.Stdin.Fd()) {
			return errors.New("no mention given")
		}
		m, err := promptMention()
		if err != nil {
			return err
		}
		mentions = []string{m}
	}

	stack, err := openStack(ctx)
	if err != nil {
		return err
	}
	defer stack.Close()

	out := cmd.OutOrStdout()
	for _, m := range mentions {
		res, ranked := stack.Resolver.Explain(ctx, m)
		if jsonOutput {
			if err := writeJSON(out, linker.NewLinkResponse(m, res)); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintln(out, renderResult(m, res))
		if explain {
			fmt.Fprintln(out, renderVariants(ranked))
		}
	}
	return nil
}

func promptMention() (string, error) {
	var mention string
	err := huh.NewInput().
		Title("Mention").
		Description("Surface form to link, e.g. a person, place or organization").
		Placeholder("e.g., Paris").
		Value(&mention).
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("mention is required")
			}
			return nil
		}).
		Run()
	if err != nil {
		return "", err
	}
	return mention, nil
}

func runBatchCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var in io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	mentions, err := readMentions(in)
	if err != nil {
		return err
	}

	stack, err := openStack(ctx)
	if err != nil {
		return err
	}
	defer stack.Close()

	results, batchErr := stack.Linker.ResolveBatch(ctx, mentions)
	out := cmd.OutOrStdout()
	for _, m := range linker.Distinct(mentions) {
		res, ok := results[m]
		if !ok {
			continue
		}
		if err := writeJSON(out, linker.NewLinkResponse(m, res)); err != nil {
			return err
		}
	}
	return batchErr
}

// readMentions returns the non-blank lines of r, trimmed.
func readMentions(r io.Reader) ([]string, error) {
	var mentions []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			mentions = append(mentions, line)
		}
	}
	return mentions, sc.Err()
}

func runAnnotateCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	src, err := alto.OpenStore(ctx, args[0], nil)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := alto.OpenStore(ctx, args[1], nil)
	if err != nil {
		return err
	}
	defer dst.Close()

	var local *alto.FSStore
	if watch {
		var ok bool
		if local, ok = src.(*alto.FSStore); !ok {
			return fmt.Errorf("--watch needs a local source directory, got %s", src)
		}
	}

	stack, err := openStack(ctx)
	if err != nil {
		return err
	}
	defer stack.Close()

	annotator := alto.NewAnnotator(stack.Linker, nil)
	sum, err := annotator.ProcessAll(ctx, src, dst)
	if err != nil {
		return err
	}
	if jsonOutput {
		if err := writeJSON(cmd.OutOrStdout(), sum); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), renderSummary(sum))
	}

	if !watch {
		return nil
	}
	return annotator.Watch(ctx, local, dst, watchSettle)
}

func runCompareCommand(cmd *cobra.Command, args []string) error {
	report, err := similarity.Compare(args[0], args[1])
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), report)
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderReport(report))
	return nil
}

func runPhoneticCommand(cmd *cobra.Command, args []string) error {
	codes := make([]phoneticCodes, 0, len(args))
	for _, name := range args {
		pc, err := encodeAll(name, metaphoneLen)
		if err != nil {
			return err
		}
		codes = append(codes, pc)
	}
	if jsonOutput {
		for _, pc := range codes {
			if err := writeJSON(cmd.OutOrStdout(), pc); err != nil {
				return err
			}
		}
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderPhonetic(codes))
	return nil
}

// phoneticCodes holds every phonetic code of one name, keyed by algorithm.
type phoneticCodes struct {
	Name  string            `json:"name"`
	Codes map[string]string `json:"codes"`
}

// encodeAll encodes name with every algorithm. An algorithm that cannot
// encode name, e.g. because it has no ASCII letters, yields "-".
func encodeAll(name string, metaphoneLength int) (phoneticCodes, error) {
	pc := phoneticCodes{Name: name, Codes: make(map[string]string, len(similarity.Algorithms))}
	for _, alg := range similarity.Algorithms {
		var (
			code string
			err  error
		)
		if alg == similarity.AlgorithmMetaphone {
			code, err = similarity.Metaphone(name, metaphoneLength)
		} else {
			code, err = similarity.Encode(alg, name)
		}
		switch {
		case errors.Is(err, similarity.ErrInvalidInput):
			code = "-"
		case err != nil:
			return pc, fmt.Errorf("%s(%q): %w", alg, name, err)
		}
		pc.Codes[alg] = code
	}
	return pc, nil
}

func writeJSON(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}
