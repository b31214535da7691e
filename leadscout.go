// Package leadscout discovers, vets, crawls and indexes the web presence of
// businesses in a target industry, then answers questions about them.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., sqlite/, gemini/, goquery/), and
// orchestration lives in discover/, vet/, dedup/, crawl/, extract/,
// index/, retrieve/ and pipeline/.
package leadscout
