package stats

import (
	"strconv"
)

// ToFields flattens the accumulator and histogram into the hash
// representation stored at ql:s:{wait,run}:<bin>:<queue>.
func ToFields(acc Accumulator, h Histogram) map[string]string {
	m := map[string]string{
		"total": strconv.FormatInt(acc.Total, 10),
		"mean":  strconv.FormatFloat(acc.Mean, 'f', -1, 64),
		"vk":    strconv.FormatFloat(acc.Vk, 'f', -1, 64),
	}
	for i := 0; i < 60; i++ {
		m["s"+strconv.Itoa(i)] = strconv.FormatInt(h.Seconds[i], 10)
	}
	for i := 1; i <= 59; i++ {
		m["m"+strconv.Itoa(i)] = strconv.FormatInt(h.Minutes[i], 10)
	}
	for i := 1; i <= 23; i++ {
		m["h"+strconv.Itoa(i)] = strconv.FormatInt(h.Hours[i], 10)
	}
	for i := 1; i <= 6; i++ {
		m["d"+strconv.Itoa(i)] = strconv.FormatInt(h.Days[i], 10)
	}
	return m
}

// FromFields reconstructs the accumulator and histogram from a hash; a nil
// or empty map yields a zero-valued (fresh) pair.
func FromFields(m map[string]string) (Accumulator, Histogram) {
	var acc Accumulator
	var h Histogram
	acc.Total, _ = strconv.ParseInt(m["total"], 10, 64)
	acc.Mean, _ = strconv.ParseFloat(m["mean"], 64)
	acc.Vk, _ = strconv.ParseFloat(m["vk"], 64)
	for i := 0; i < 60; i++ {
		h.Seconds[i], _ = strconv.ParseInt(m["s"+strconv.Itoa(i)], 10, 64)
	}
	for i := 1; i <= 59; i++ {
		h.Minutes[i], _ = strconv.ParseInt(m["m"+strconv.Itoa(i)], 10, 64)
	}
	for i := 1; i <= 23; i++ {
		h.Hours[i], _ = strconv.ParseInt(m["h"+strconv.Itoa(i)], 10, 64)
	}
	for i := 1; i <= 6; i++ {
		h.Days[i], _ = strconv.ParseInt(m["d"+strconv.Itoa(i)], 10, 64)
	}
	return acc, h
}
