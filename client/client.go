// (c) 2024-2026, Rift Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package client is a thin JSON-RPC wrapper over the node's query
// surface.
package client

import (
	"context"

	"github.com/ava-labs/avalanchego/ids"
	cjson "github.com/ava-labs/avalanchego/utils/json"
	"github.com/ava-labs/avalanchego/utils/rpc"

	"github.com/rift-labs/riftvm/service"
)

// Client defines the query operations of a node.
type Client interface {
	// GetAccount fetches the balance, nonce and code flag of an address.
	GetAccount(ctx context.Context, address string) (uint64, uint64, bool, error)

	// GetReceipt fetches the first receipt recorded for an operation.
	GetReceipt(ctx context.Context, opID ids.ID) (*service.ReceiptReply, error)

	// GetReceiptByIndex fetches the n-th receipt ever emitted.
	GetReceiptByIndex(ctx context.Context, index uint64) (*service.ReceiptReply, error)

	// GetTip fetches the last processed level and the receipt count.
	GetTip(ctx context.Context) (uint64, uint64, error)

	// GetStorage fetches a committed leaf of a contract's namespace.
	GetStorage(ctx context.Context, address string, key string) (string, error)
}

// New creates a client for the node at [uri].
func New(uri string) Client {
	return &client{req: rpc.NewEndpointRequester(uri)}
}

type client struct {
	req rpc.EndpointRequester
}

func (cli *client) GetAccount(ctx context.Context, address string) (uint64, uint64, bool, error) {
	resp := new(service.GetAccountReply)
	err := cli.req.SendRequest(ctx,
		"riftvm.getAccount",
		&service.GetAccountArgs{Address: address},
		resp,
	)
	if err != nil {
		return 0, 0, false, err
	}
	return uint64(resp.Balance), uint64(resp.Nonce), resp.HasCode, nil
}

func (cli *client) GetReceipt(ctx context.Context, opID ids.ID) (*service.ReceiptReply, error) {
	resp := new(service.ReceiptReply)
	err := cli.req.SendRequest(ctx,
		"riftvm.getReceipt",
		&service.GetReceiptArgs{OpID: opID},
		resp,
	)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (cli *client) GetReceiptByIndex(ctx context.Context, index uint64) (*service.ReceiptReply, error) {
	resp := new(service.ReceiptReply)
	err := cli.req.SendRequest(ctx,
		"riftvm.getReceiptByIndex",
		&service.GetReceiptByIndexArgs{Index: cjson.Uint64(index)},
		resp,
	)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (cli *client) GetTip(ctx context.Context) (uint64, uint64, error) {
	resp := new(service.GetTipReply)
	err := cli.req.SendRequest(ctx, "riftvm.getTip", &struct{}{}, resp)
	if err != nil {
		return 0, 0, err
	}
	return uint64(resp.Level), uint64(resp.ReceiptCount), nil
}

func (cli *client) GetStorage(ctx context.Context, address string, key string) (string, error) {
	resp := new(service.GetStorageReply)
	err := cli.req.SendRequest(ctx,
		"riftvm.getStorage",
		&service.GetStorageArgs{Address: address, Key: key},
		resp,
	)
	if err != nil {
		return "", err
	}
	return resp.Value, nil
}
