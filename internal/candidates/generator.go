package candidates

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
)

// ErrNoCandidates is returned when a strategy would yield an empty set. An
// empty candidate set must never be mistaken for a complete cache, so the
// generator fails loudly instead of returning it.
var ErrNoCandidates = errors.New("candidate set is empty")

var zipFormat = regexp.MustCompile(`^[0-9]{5}$`)

// zipRange is an inclusive numeric range of plausible US zip codes.
type zipRange struct {
	start int
	end   int
}

// likelyRanges are the known allocated US zip ranges, used when no
// authoritative reference file is configured. Brute-forcing 00000-99999
// wastes most of the probe budget on codes that were never assigned.
var likelyRanges = []zipRange{
	{501, 999},     // special and MA
	{1000, 5999},   // MA, RI, CT, NH, VT, ME
	{6000, 6999},   // PR, VI
	{7000, 8999},   // NJ, NY
	{9000, 14999},  // NY, PA
	{15000, 19999}, // PA, DE, MD
	{20000, 26999}, // DC, VA, MD, WV
	{27000, 28999}, // NC
	{29000, 29999}, // SC
	{30000, 31999}, // GA
	{32000, 34999}, // FL
	{35000, 36999}, // AL
	{37000, 38999}, // TN
	{39000, 39999}, // MS
	{40000, 42999}, // KY, IN
	{43000, 45999}, // OH
	{46000, 47999}, // IN
	{48000, 49999}, // MI
	{50000, 52999}, // IA, MN, WI
	{53000, 54999}, // WI
	{55000, 56999}, // MN
	{57000, 57999}, // SD
	{58000, 58999}, // ND
	{59000, 59999}, // MT
	{60000, 62999}, // IL
	{63000, 65999}, // MO, IA
	{66000, 67999}, // KS
	{68000, 69999}, // NE
	{70000, 71999}, // LA
	{72000, 72999}, // AR
	{73000, 74999}, // OK
	{75000, 79999}, // TX
	{80000, 81999}, // CO
	{82000, 83999}, // WY
	{84000, 84999}, // UT
	{85000, 86999}, // AZ
	{87000, 88999}, // NM
	{89000, 89999}, // NV
	{90000, 96999}, // CA
	{97000, 97999}, // OR
	{98000, 99999}, // WA, AK
}

// specialZips sit outside the contiguous ranges and are easy to miss.
var specialZips = []string{
	"00501",                   // IRS Holtsville, NY
	"00601", "00602", "00603", // Puerto Rico
	"96799", // American Samoa
	"99950", // Ketchikan, AK
}

// FromRanges synthesizes the candidate set from the known allocated ranges.
// The result is sorted, duplicate-free, and deterministic.
func FromRanges() ([]string, error) {
	seen := make(map[string]struct{})
	for _, r := range likelyRanges {
		for i := r.start; i <= r.end; i++ {
			seen[fmt.Sprintf("%05d", i)] = struct{}{}
		}
	}
	for _, z := range specialZips {
		seen[z] = struct{}{}
	}

	zips := make([]string, 0, len(seen))
	for z := range seen {
		zips = append(zips, z)
	}
	sort.Strings(zips)

	if len(zips) == 0 {
		return nil, ErrNoCandidates
	}
	return zips, nil
}

// FromFile loads the candidate set from a reference file, one zip per line
// (the Census ZCTA export format). Lines failing the 5-digit format are
// rejected; an unreadable or empty file is an error, never a silent empty
// set.
func FromFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open candidate file: %w", err)
	}
	defer f.Close()

	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if text == "" {
			continue
		}
		if !zipFormat.MatchString(text) {
			return nil, fmt.Errorf("candidate file %s line %d: invalid zip code %q", path, line, text)
		}
		seen[text] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read candidate file: %w", err)
	}

	if len(seen) == 0 {
		return nil, fmt.Errorf("candidate file %s: %w", path, ErrNoCandidates)
	}

	zips := make([]string, 0, len(seen))
	for z := range seen {
		zips = append(zips, z)
	}
	sort.Strings(zips)
	return zips, nil
}

// Filter restricts keys to the inclusive [start, end] range. Empty bounds are
// unbounded. Keys are assumed sorted; order is preserved.
func Filter(keys []string, start, end string) []string {
	if start == "" && end == "" {
		return keys
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if start != "" && k < start {
			continue
		}
		if end != "" && k > end {
			continue
		}
		out = append(out, k)
	}
	return out
}
