// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lawallet/card-server/models"
)

// ParsePubkeyList splits a ':'-separated list of hex pubkeys (App.AdminPubkeys,
// App.DefaultTrustedMerchants) into its elements, dropping empty entries.
func ParsePubkeyList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	var out []string
	for _, entry := range strings.Split(raw, ":") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			out = append(out, entry)
		}
	}
	return out
}

// ParseDefaultLimits parses App.DefaultLimits, a ':'-separated list of
// "name;desc;token;amount;delta" records, into the []models.Limit applied
// to every newly activated card.
func ParseDefaultLimits(raw string) ([]models.Limit, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	records := strings.Split(raw, ":")
	limits := make([]models.Limit, 0, len(records))

	for _, record := range records {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}

		fields := strings.Split(record, ";")
		if len(fields) != 5 {
			return nil, fmt.Errorf("malformed DEFAULT_LIMITS record %q: expected 5 ';'-separated fields", record)
		}

		amount, err := strconv.ParseInt(strings.TrimSpace(fields[3]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed DEFAULT_LIMITS record %q: amount: %w", record, err)
		}
		delta, err := strconv.ParseInt(strings.TrimSpace(fields[4]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed DEFAULT_LIMITS record %q: delta: %w", record, err)
		}

		limits = append(limits, models.Limit{
			Name:        strings.TrimSpace(fields[0]),
			Description: strings.TrimSpace(fields[1]),
			Token:       strings.TrimSpace(fields[2]),
			Amount:      amount,
			Delta:       delta,
		})
	}

	return limits, nil
}
