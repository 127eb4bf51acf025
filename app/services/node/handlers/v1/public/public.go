// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/siertrichain/siertrichain/business/sys/validate"
	"github.com/siertrichain/siertrichain/business/web/errs"
	"github.com/siertrichain/siertrichain/foundation/blockchain/database"
	"github.com/siertrichain/siertrichain/foundation/blockchain/geometry"
	"github.com/siertrichain/siertrichain/foundation/blockchain/state"
	"github.com/siertrichain/siertrichain/foundation/events"
	"github.com/siertrichain/siertrichain/foundation/nameservice"
	"github.com/siertrichain/siertrichain/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of public ledger endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	// Need this to handle CORS on the websocket.
	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	// This upgrades the HTTP connection to a websocket connection.
	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	// This provides a channel for receiving events from the blockchain. The
	// source query parameter restricts the stream, as in ?source=viewer.
	ch := h.Evts.Acquire(v.TraceID, r.URL.Query()["source"]...)
	defer h.Evts.Release(v.TraceID)

	// Starting a ticker to send a ping message over the websocket.
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	// Block waiting for events from the blockchain or ticker.
	for {
		select {
		case msg, wd := <-ch:

			// If the channel is closed, release the websocket.
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// SubmitWalletTransaction adds a signed subdivision or transfer to the
// mempool and shares it with the known peers.
func (h Handlers) SubmitWalletTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var txData database.TxData
	if err := web.Decode(r, &txData); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if err := validate.Check(txData); err != nil {
		return err
	}

	tx, err := txData.ToTx()
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.Log.Infow("add user tran", "traceid", v.TraceID, "kind", tx.Kind(), "hash", tx.Hash(), "from", database.TxFrom(tx), "fee", database.TxFee(tx))
	if err := h.State.UpsertWalletTransaction(tx); err != nil {
		if state.IsInvalidTransaction(err) {
			return errs.NewTrusted(err, http.StatusBadRequest)
		}
		return err
	}

	resp := struct {
		Status string `json:"status"`
		Hash   string `json:"hash"`
	}{
		Status: "transaction added to mempool",
		Hash:   tx.Hash(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	gen := h.State.RetrieveGenesis()
	return web.Respond(ctx, w, gen, http.StatusOK)
}

// Status returns the chain counters of this node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	st := status{
		Stats:      h.State.QueryStats(),
		KnownPeers: len(h.State.RetrieveKnownPeers()),
	}

	return web.Respond(ctx, w, st, http.StatusOK)
}

// Mempool returns the set of uncommitted transactions in priority order.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	mempool := h.State.RetrieveMempool()

	trans := make([]tx, len(mempool))
	for i, tran := range mempool {
		trans[i] = h.toTx(tran)
	}

	return web.Respond(ctx, w, trans, http.StatusOK)
}

// Assets returns every asset in the ledger.
func (h Handlers) Assets(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	triangles := h.State.QueryAssets()

	assets := make([]asset, len(triangles))
	for i, tri := range triangles {
		assets[i] = h.toAsset(tri)
	}

	return web.Respond(ctx, w, assets, http.StatusOK)
}

// Asset returns the asset with the specified hash.
func (h Handlers) Asset(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	tri, err := h.State.QueryAsset(web.Param(r, "hash"))
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, h.toAsset(tri), http.StatusOK)
}

// Holdings returns the assets owned by the specified account. The owner
// can be provided as an address or as a name known to the name service.
func (h Handlers) Holdings(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	owner, err := h.account(web.Param(r, "owner"))
	if err != nil {
		return err
	}

	triangles := h.State.QueryHoldings(owner)

	hld := holdings{
		Owner:     owner,
		OwnerName: h.NS.Lookup(owner),
		Count:     len(triangles),
		Assets:    make([]asset, len(triangles)),
	}
	for i, tri := range triangles {
		hld.Assets[i] = h.toAsset(tri)
		hld.TotalArea += tri.Area()
	}

	return web.Respond(ctx, w, hld, http.StatusOK)
}

// RewardBalance returns the coinbase rewards credited to the account.
func (h Handlers) RewardBalance(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	account, err := h.account(web.Param(r, "account"))
	if err != nil {
		return err
	}

	rb := rewardBalance{
		Account: account,
		Name:    h.NS.Lookup(account),
		Balance: h.State.QueryRewardBalance(account),
	}

	return web.Respond(ctx, w, rb, http.StatusOK)
}

// Reward returns the coinbase reward for a block at the specified height.
func (h Handlers) Reward(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	height, err := strconv.ParseUint(web.Param(r, "height"), 10, 64)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	rs := h.State.RewardSchedule()

	rwd := reward{
		Height:      height,
		Era:         rs.Era(height),
		Reward:      rs.Reward(height),
		NextHalving: rs.NextHalving(height),
	}

	return web.Respond(ctx, w, rwd, http.StatusOK)
}

// BlocksByNumber returns the blocks in the specified range with their
// transactions.
func (h Handlers) BlocksByNumber(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	from, to, err := blockRange(web.Param(r, "from"), web.Param(r, "to"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	dbBlocks := h.State.QueryBlocksByNumber(from, to)
	if len(dbBlocks) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	blocks := make([]block, len(dbBlocks))
	for i, blk := range dbBlocks {
		blocks[i] = h.toBlock(blk)
	}

	return web.Respond(ctx, w, blocks, http.StatusOK)
}

// BlockByHash returns the block with the specified hash.
func (h Handlers) BlockByHash(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	blk, err := h.State.QueryBlockByHash(web.Param(r, "hash"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusNotFound)
	}

	return web.Respond(ctx, w, h.toBlock(blk), http.StatusOK)
}

// MerkleProof returns the inclusion proof of a transaction in a block.
func (h Handlers) MerkleProof(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	number, err := strconv.ParseUint(web.Param(r, "number"), 10, 64)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}
	txHash := web.Param(r, "tx")

	steps, root, err := h.State.QueryMerkleProof(number, txHash)
	if err != nil {
		return errs.NewTrusted(err, http.StatusNotFound)
	}

	prf := proof{
		Block:      number,
		TxHash:     txHash,
		MerkleRoot: root,
		Steps:      steps,
	}

	return web.Respond(ctx, w, prf, http.StatusOK)
}

// =============================================================================

// account resolves a name or an address into an account id.
func (h Handlers) account(value string) (database.AccountID, error) {
	if account, exists := h.NS.Resolve(value); exists {
		return account, nil
	}

	account, err := database.ToAccountID(value)
	if err != nil {
		return "", errs.NewFieldsError("account", err)
	}

	return account, nil
}

func (h Handlers) toAsset(tri geometry.Triangle) asset {
	return asset{
		Hash:       tri.Hash(),
		A:          tri.A,
		B:          tri.B,
		C:          tri.C,
		Area:       tri.Area(),
		ParentHash: tri.ParentHash,
		Owner:      tri.Owner,
		OwnerName:  h.NS.Lookup(database.AccountID(tri.Owner)),
	}
}

func (h Handlers) toTx(tran database.Tx) tx {
	t := tx{
		Hash:  tran.Hash(),
		Kind:  tran.Kind(),
		Input: database.TxInput(tran),
		Fee:   database.TxFee(tran),
		Nonce: database.TxNonce(tran),
		Data:  database.NewTxData(tran),
	}

	if from := database.TxFrom(tran); from != "" {
		t.From = string(from)
		t.FromName = h.NS.Lookup(from)
	}

	return t
}

func (h Handlers) toBlock(blk database.Block) block {
	trans := make([]tx, len(blk.Trans))
	for i, tran := range blk.Trans {
		trans[i] = h.toTx(tran)
	}

	return block{
		Hash:          blk.Hash(),
		Number:        blk.Header.Number,
		PrevBlockHash: blk.Header.PrevBlockHash,
		TimeStamp:     blk.Header.TimeStamp,
		MerkleRoot:    blk.Header.MerkleRoot,
		Difficulty:    blk.Header.Difficulty,
		Nonce:         blk.Header.Nonce,
		Transactions:  trans,
	}
}

// blockRange parses a block range where either end can be "latest".
func blockRange(fromStr string, toStr string) (uint64, uint64, error) {
	parse := func(s string) (uint64, error) {
		if s == "latest" || s == "" {
			return state.QueryLatest, nil
		}
		return strconv.ParseUint(s, 10, 64)
	}

	from, err := parse(fromStr)
	if err != nil {
		return 0, 0, fmt.Errorf("from: %w", err)
	}

	to, err := parse(toStr)
	if err != nil {
		return 0, 0, fmt.Errorf("to: %w", err)
	}

	if from > to {
		return 0, 0, errors.New("from greater than to")
	}

	return from, to, nil
}
