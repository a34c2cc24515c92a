// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// linkcache_dump inspects the linker's result cache.
//
// The result cache persists resolutions in BadgerDB under
// linker/result/v1/{config fingerprint}/{mention}. This tool opens the cache
// read-only and prints every entry grouped by fingerprint: the mention, the
// outcome, the matched identifier and score, and the TTL remaining.
//
// Usage:
//
//	linkcache_dump [--path /path/to/cache] [--fingerprint abc123...] [--json]
//
// If --path is not given, reads LINKER_CACHE_PATH from the environment,
// falling back to ~/.entitylink/cache/.
//
// Exit codes:
//
//	0: success, including an empty or missing cache
//	1: error opening or reading the database
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/EntityLink/services/linker/cache"
	"github.com/AleutianAI/EntityLink/services/linker/entity"
	badgerstore "github.com/AleutianAI/EntityLink/services/linker/storage/badger"
)

type entry struct {
	Fingerprint string         `json:"fingerprint"`
	Mention     string         `json:"mention"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty"`
	RawSize     int            `json:"raw_size"`
	Result      *entity.Result `json:"result,omitempty"`
	DecodeError string         `json:"decode_error,omitempty"`
}

func main() {
	pathFlag := flag.String("path", "", "Path to the cache BadgerDB directory (overrides LINKER_CACHE_PATH env var)")
	fpFlag := flag.String("fingerprint", "", "Only show entries written under this config fingerprint")
	jsonFlag := flag.Bool("json", false, "Print entries as JSON lines")
	flag.Parse()

	dbPath := *pathFlag
	if dbPath == "" {
		dbPath = os.Getenv("LINKER_CACHE_PATH")
	}
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fatalf("cannot resolve home directory: %v", err)
		}
		dbPath = filepath.Join(home, ".entitylink", "cache")
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Printf("Cache directory %s does not exist. The linker has not cached any results yet.\n", dbPath)
		os.Exit(0)
	}

	db, err := badgerstore.OpenDB(badgerstore.Config{Path: dbPath, ReadOnly: true})
	if err != nil {
		fatalf("%v", err)
	}
	defer func() { _ = db.Close() }()

	prefix := cache.KeyPrefix
	if *fpFlag != "" {
		prefix += *fpFlag + "/"
	}

	entries, err := readEntries(context.Background(), db, prefix)
	if err != nil {
		fatalf("read BadgerDB: %v", err)
	}

	if *jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		for _, e := range entries {
			if err := enc.Encode(e); err != nil {
				fatalf("encode: %v", err)
			}
		}
		return
	}
	printEntries(dbPath, entries)
}

func readEntries(ctx context.Context, db *badgerstore.DB, prefix string) ([]entry, error) {
	var entries []entry
	err := db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			rest := strings.TrimPrefix(string(item.Key()), cache.KeyPrefix)
			fp, mention, _ := strings.Cut(rest, "/")

			e := entry{Fingerprint: fp, Mention: mention}
			if exp := item.ExpiresAt(); exp > 0 {
				t := time.Unix(int64(exp), 0)
				e.ExpiresAt = &t
			}

			raw, err := item.ValueCopy(nil)
			if err != nil {
				e.DecodeError = fmt.Sprintf("copy value: %v", err)
				entries = append(entries, e)
				continue
			}
			e.RawSize = len(raw)

			res, err := cache.DecodeResult(raw)
			if err != nil {
				e.DecodeError = fmt.Sprintf("gob decode: %v", err)
			} else {
				e.Result = &res
			}
			entries = append(entries, e)
		}
		return nil
	})
	return entries, err
}

func printEntries(dbPath string, entries []entry) {
	if len(entries) == 0 {
		fmt.Println("No cached results found.")
		return
	}

	groups := make(map[string][]entry)
	for _, e := range entries {
		groups[e.Fingerprint] = append(groups[e.Fingerprint], e)
	}
	fps := make([]string, 0, len(groups))
	for fp := range groups {
		fps = append(fps, fp)
	}
	sort.Strings(fps)

	outcomes := make(map[entity.Outcome]int)
	for _, fp := range fps {
		group := groups[fp]
		fmt.Printf("\nFingerprint %s (%d entr%s)\n", fp, len(group), plural(len(group), "y", "ies"))
		fmt.Println(strings.Repeat("─", 80))

		width := len("Mention")
		for _, e := range group {
			width = max(width, len(e.Mention))
		}
		fmt.Printf("  %-*s  %-14s  %6s  %-14s  %s\n", width, "Mention", "Outcome", "Score", "TTL", "Identifier")

		for _, e := range group {
			if e.Result == nil {
				fmt.Printf("  %-*s  DECODE ERROR: %s\n", width, e.Mention, e.DecodeError)
				continue
			}
			outcomes[e.Result.Outcome]++

			score, id := "", ""
			if e.Result.Match != nil {
				score = fmt.Sprintf("%.4f", e.Result.Match.Score)
				id = e.Result.Match.ID
			} else if e.Result.Closest != nil {
				id = "closest " + e.Result.Closest.ID
			}
			fmt.Printf("  %-*s  %-14s  %6s  %-14s  %s\n", width, e.Mention, e.Result.Outcome, score, ttl(e.ExpiresAt), id)
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("─", 80))
	fmt.Printf("Summary: %d entr%s (%d matched, %d no_match), cache path: %s\n",
		len(entries), plural(len(entries), "y", "ies"),
		outcomes[entity.OutcomeMatched], outcomes[entity.OutcomeNoMatch], dbPath)
}

// ttl formats the time left before expiresAt.
func ttl(expiresAt *time.Time) string {
	if expiresAt == nil {
		return "no expiry"
	}
	remaining := time.Until(*expiresAt)
	if remaining < 0 {
		return "EXPIRED"
	}
	return remaining.Round(time.Second).String()
}

// plural returns singular or plural suffix based on count.
func plural(n int, singular, pluralSuffix string) string {
	if n == 1 {
		return singular
	}
	return pluralSuffix
}

// fatalf prints to stderr and exits 1.
func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "linkcache_dump: "+format+"\n", args...)
	os.Exit(1)
}
