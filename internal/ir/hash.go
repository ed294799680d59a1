package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content digests.
// Version suffix enables future algorithm migration.
const (
	DomainRecord   = "kotars/record/v1"
	DomainArtifact = "kotars/artifact/v1"
	DomainSource   = "kotars/source/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RecordDigest computes the content digest of an IR node from its
// canonical JSON. Two nodes with equal digests encode to identical records.
func RecordDigest(node any) (string, error) {
	v, err := ToValue(node)
	if err != nil {
		return "", fmt.Errorf("RecordDigest: %w", err)
	}
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("RecordDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRecord, canonical), nil
}

// ArtifactDigest computes the digest of a generated file's contents.
// The path participates so that identical content at two paths differs.
func ArtifactDigest(path string, content []byte) string {
	data := make([]byte, 0, len(path)+1+len(content))
	data = append(data, path...)
	data = append(data, 0x00)
	data = append(data, content...)
	return hashWithDomain(DomainArtifact, data)
}

// SourceDigest computes the digest of an input source text.
func SourceDigest(content []byte) string {
	return hashWithDomain(DomainSource, content)
}

// MustRecordDigest is like RecordDigest but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustRecordDigest(node any) string {
	d, err := RecordDigest(node)
	if err != nil {
		panic(err)
	}
	return d
}
