// (c) 2024-2026, Rift Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package service

import (
	"testing"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/inconshreveable/log15"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rift-labs/riftvm/kernel"
	"github.com/rift-labs/riftvm/keys"
	"github.com/rift-labs/riftvm/storage"
)

const counterContract = `
function init() {
	Kv.set("count", 0);
}
function bump(args) {
	var n = Kv.get("count") + args.by;
	Kv.set("count", n);
	return { count: n };
}
`

func newTestService(t *testing.T) (*Service, keys.Address, keys.Address) {
	t.Helper()
	log := log15.New("test", t.Name())
	log.SetHandler(log15.DiscardHandler())
	proc := kernel.NewProcessor(storage.New(memdb.New()), nil, kernel.Config{}, log)

	key, err := keys.GenerateKey()
	require.NoError(t, err)
	source := keys.UserAddress(&key.PublicKey)
	require.NoError(t, proc.InitGenesis(&kernel.Genesis{
		Allocations: map[string]uint64{source.String(): 1_000},
	}))

	deploy, err := kernel.SignOperation(0, &kernel.Deploy{
		Code:     []byte(counterContract),
		Credit:   100,
		InitArgs: []byte(`{}`),
	}, key)
	require.NoError(t, err)
	raw, err := deploy.Bytes()
	require.NoError(t, err)

	receipts, err := proc.ProcessBatch(1, [][]byte{raw})
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	require.Equal(t, kernel.StatusSuccess, receipts[0].Status)

	return &Service{proc: proc}, source, receipts[0].ContractAddress
}

func TestGetAccount(t *testing.T) {
	assert := assert.New(t)
	svc, source, contract := newTestService(t)

	reply := GetAccountReply{}
	require.NoError(t, svc.GetAccount(nil, &GetAccountArgs{Address: source.String()}, &reply))
	assert.Equal("user", reply.Kind)
	assert.EqualValues(900, reply.Balance)
	assert.EqualValues(1, reply.Nonce)
	assert.False(reply.HasCode)

	reply = GetAccountReply{}
	require.NoError(t, svc.GetAccount(nil, &GetAccountArgs{Address: contract.String()}, &reply))
	assert.Equal("contract", reply.Kind)
	assert.EqualValues(100, reply.Balance)
	assert.True(reply.HasCode)

	assert.Error(svc.GetAccount(nil, &GetAccountArgs{Address: "garbage"}, &GetAccountReply{}))
}

func TestGetReceiptAndTip(t *testing.T) {
	assert := assert.New(t)
	svc, _, contract := newTestService(t)

	reply := ReceiptReply{}
	require.NoError(t, svc.GetReceiptByIndex(nil, &GetReceiptByIndexArgs{Index: 0}, &reply))
	assert.Equal("success", reply.Status)
	assert.Equal(contract.String(), reply.ContractAddress)

	byID := ReceiptReply{}
	require.NoError(t, svc.GetReceipt(nil, &GetReceiptArgs{OpID: reply.OpID}, &byID))
	assert.Equal(reply, byID)

	tip := GetTipReply{}
	require.NoError(t, svc.GetTip(nil, &struct{}{}, &tip))
	assert.EqualValues(1, tip.Level)
	assert.EqualValues(1, tip.ReceiptCount)
}

func TestGetStorage(t *testing.T) {
	assert := assert.New(t)
	svc, _, contract := newTestService(t)

	reply := GetStorageReply{}
	require.NoError(t, svc.GetStorage(nil, &GetStorageArgs{
		Address: contract.String(),
		Key:     "count",
	}, &reply))
	assert.Equal("0", reply.Value)

	err := svc.GetStorage(nil, &GetStorageArgs{
		Address: contract.String(),
		Key:     "missing",
	}, &GetStorageReply{})
	assert.ErrorIs(err, errNoValue)
}
