package ledger

import (
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"
)

// EventAttribute scans a broadcast raw log for the first attribute matching
// eventType/key. The raw log is the JSON event array the ledger attaches to
// every accepted transaction.
func EventAttribute(rawLog, eventType, key string) (string, bool) {
	var value string
	var found bool
	gjson.Parse(rawLog).ForEach(func(_, entry gjson.Result) bool {
		entry.Get("events").ForEach(func(_, event gjson.Result) bool {
			if event.Get("type").String() != eventType {
				return true
			}
			event.Get("attributes").ForEach(func(_, attr gjson.Result) bool {
				if attr.Get("key").String() == key {
					value = attr.Get("value").String()
					found = true
					return false
				}
				return true
			})
			return !found
		})
		return !found
	})
	return value, found
}

// CodeIDFromLog extracts the stored code id after a store-code transaction.
func CodeIDFromLog(rawLog string) (uint64, error) {
	raw, ok := EventAttribute(rawLog, "message", "code_id")
	if !ok {
		return 0, fmt.Errorf("code_id attribute not found in tx log")
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing code_id %q: %w", raw, err)
	}
	return id, nil
}

// ContractAddressFromLog extracts the instantiated contract address.
func ContractAddressFromLog(rawLog string) (string, error) {
	addr, ok := EventAttribute(rawLog, "message", "contract_address")
	if !ok {
		return "", fmt.Errorf("contract_address attribute not found in tx log")
	}
	return addr, nil
}

// DistributionFromLog extracts the share list a distribute_profit execution
// reports via its "distribution" attribute, e.g. "[120, 60, 0]".
func DistributionFromLog(rawLog string) ([]uint64, error) {
	raw, ok := EventAttribute(rawLog, "wasm", "distribution")
	if !ok {
		return nil, fmt.Errorf("distribution attribute not found in tx log")
	}
	parsed := gjson.Parse(raw)
	if !parsed.IsArray() {
		return nil, fmt.Errorf("distribution attribute is not an array: %q", raw)
	}
	var out []uint64
	var bad error
	parsed.ForEach(func(_, item gjson.Result) bool {
		if item.Type != gjson.Number || item.Float() < 0 {
			bad = fmt.Errorf("distribution entry is not a non-negative integer: %q", item.Raw)
			return false
		}
		out = append(out, item.Uint())
		return true
	})
	if bad != nil {
		return nil, bad
	}
	return out, nil
}
