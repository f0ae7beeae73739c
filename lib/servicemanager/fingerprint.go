// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package servicemanager

import (
	"encoding/hex"
	"io"
	"sort"

	"github.com/zeebo/blake3"
)

// fingerprintDomainKey separates service fingerprints from any other
// BLAKE3 use of the same bytes. The value is the ASCII domain name,
// zero-padded to 32 bytes.
var fingerprintDomainKey = [32]byte{
	'c', 'o', 'n', 'c', 'e', 'r', 't', '.', 's', 'e', 'r', 'v', 'i', 'c', 'e', '.',
	'f', 'i', 'n', 'g', 'e', 'r', 'p', 'r', 'i', 'n', 't', 0, 0, 0, 0, 0,
}

// Fingerprint hashes the argument vector and the definition's own
// environment into a hex string. Two definitions with the same
// fingerprint launch the same child. The inherited environment is not
// hashed.
func Fingerprint(argv []string, environment map[string]string) string {
	hasher, err := blake3.NewKeyed(fingerprintDomainKey[:])
	if err != nil {
		panic("servicemanager: BLAKE3 keyed hash initialization failed: " + err.Error())
	}

	// NUL separators make the encoding unambiguous: no argument or
	// variable can contain NUL.
	io.WriteString(hasher, "argv\x00")
	for _, argument := range argv {
		io.WriteString(hasher, argument)
		io.WriteString(hasher, "\x00")
	}
	io.WriteString(hasher, "env\x00")
	for _, entry := range sortedEnvironment(environment) {
		io.WriteString(hasher, entry)
		io.WriteString(hasher, "\x00")
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

// sortedEnvironment renders environment as KEY=value entries sorted by
// key.
func sortedEnvironment(environment map[string]string) []string {
	keys := make([]string, 0, len(environment))
	for key := range environment {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	entries := make([]string, 0, len(keys))
	for _, key := range keys {
		entries = append(entries, key+"="+environment[key])
	}
	return entries
}
