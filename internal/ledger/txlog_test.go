package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const storeCodeLog = `[{"msg_index":0,"events":[{"type":"message","attributes":[{"key":"action","value":"store_code"},{"key":"code_id","value":"1234"}]}]}]`

const instantiateLog = `[{"msg_index":0,"events":[{"type":"message","attributes":[{"key":"action","value":"instantiate"},{"key":"contract_address","value":"secret15hfa4y3skxyc0kpy9hy0m3gwlvhcv7ftet9ctq"}]}]}]`

const distributeLog = `[{"msg_index":0,"events":[{"type":"wasm","attributes":[{"key":"action","value":"distribute_profit"},{"key":"distribution","value":"[120, 60, 0]"}]}]}]`

func TestCodeIDFromLog(t *testing.T) {
	id, err := CodeIDFromLog(storeCodeLog)
	require.NoError(t, err)
	assert.Equal(t, uint64(1234), id)

	_, err = CodeIDFromLog(`[]`)
	require.Error(t, err)
}

func TestContractAddressFromLog(t *testing.T) {
	addr, err := ContractAddressFromLog(instantiateLog)
	require.NoError(t, err)
	assert.Equal(t, "secret15hfa4y3skxyc0kpy9hy0m3gwlvhcv7ftet9ctq", addr)

	_, err = ContractAddressFromLog(storeCodeLog)
	require.Error(t, err)
}

func TestDistributionFromLog(t *testing.T) {
	shares, err := DistributionFromLog(distributeLog)
	require.NoError(t, err)
	assert.Equal(t, []uint64{120, 60, 0}, shares)
}

func TestDistributionFromLogRejectsGarbage(t *testing.T) {
	malformed := `[{"msg_index":0,"events":[{"type":"wasm","attributes":[{"key":"distribution","value":"oops"}]}]}]`
	_, err := DistributionFromLog(malformed)
	require.Error(t, err)

	negative := `[{"msg_index":0,"events":[{"type":"wasm","attributes":[{"key":"distribution","value":"[-5]"}]}]}]`
	_, err = DistributionFromLog(negative)
	require.Error(t, err)
}
