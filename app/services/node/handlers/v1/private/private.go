// Package private maintains the group of handlers for node to node access.
package private

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/siertrichain/siertrichain/business/sys/validate"
	"github.com/siertrichain/siertrichain/business/web/errs"
	"github.com/siertrichain/siertrichain/foundation/blockchain/database"
	"github.com/siertrichain/siertrichain/foundation/blockchain/peer"
	"github.com/siertrichain/siertrichain/foundation/blockchain/state"
	"github.com/siertrichain/siertrichain/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of node to node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
}

// SubmitNodeTransaction adds a transaction shared by a peer to the mempool.
func (h Handlers) SubmitNodeTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
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

	// Ask the state package to add this transaction to the mempool. The
	// transaction is not shared again since the sending peer already did.
	h.Log.Infow("add tran", "traceid", v.TraceID, "kind", tx.Kind(), "hash", tx.Hash(), "from", database.TxFrom(tx))
	if err := h.State.UpsertNodeTransaction(tx); err != nil {
		if state.IsInvalidTransaction(err) {
			return errs.NewTrusted(err, http.StatusBadRequest)
		}
		return err
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "transaction added to mempool",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// ProposeBlock takes a block received from a peer, validates it and
// if that passes, adds the block to the local blockchain.
func (h Handlers) ProposeBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	block, err := decodeBlock(r)
	if err != nil {
		return err
	}

	// Ask the state package to validate the proposed block. If the block
	// passes validation, it will be added to the blockchain database.
	if err := h.State.ProcessProposedBlock(block); err != nil {

		// A block that does not link to our tip can come from a longer
		// branch, so ask the peers for their chains.
		if errors.Is(err, database.ErrInvalidBlockLinkage) && block.Header.Number > h.State.QueryHeight() && h.State.Worker != nil {
			h.Log.Infow("propose block", "traceid", v.TraceID, "status", "resync", "number", block.Header.Number)
			go h.State.Worker.Sync()
		}

		return errs.NewTrusted(fmt.Errorf("block not accepted: %w", err), http.StatusNotAcceptable)
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "accepted",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// ValidateBlock runs the full validation of a block against the current tip
// without applying it.
func (h Handlers) ValidateBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	block, err := decodeBlock(r)
	if err != nil {
		return err
	}

	resp := struct {
		Valid bool   `json:"valid"`
		Hash  string `json:"hash"`
		Error string `json:"error,omitempty"`
	}{
		Valid: true,
		Hash:  block.Hash(),
	}

	if err := h.State.ValidateBlock(block); err != nil {
		resp.Valid = false
		resp.Error = err.Error()
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Reorganize offers a full chain starting at genesis to replace the
// canonical chain. The chain is adopted only when it is valid and longer.
func (h Handlers) Reorganize(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var blocksData []database.BlockData
	if err := web.Decode(r, &blocksData); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	blocks := make([]database.Block, len(blocksData))
	for i, blockData := range blocksData {
		block, err := database.ToBlock(blockData)
		if err != nil {
			return errs.NewTrusted(err, http.StatusBadRequest)
		}
		blocks[i] = block
	}

	if err := h.State.Reorganize(blocks); err != nil {
		return errs.NewTrusted(fmt.Errorf("chain not adopted: %w", err), http.StatusNotAcceptable)
	}

	resp := struct {
		Status string `json:"status"`
		Height uint64 `json:"height"`
	}{
		Status: "adopted",
		Height: h.State.QueryHeight(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Status returns the current status of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	latestBlock := h.State.RetrieveLatestBlock()

	status := peer.PeerStatus{
		LatestBlockHash:   latestBlock.Hash(),
		LatestBlockNumber: latestBlock.Header.Number,
		Difficulty:        h.State.QueryDifficulty(),
		KnownPeers:        h.State.RetrieveKnownPeers(),
	}

	return web.Respond(ctx, w, status, http.StatusOK)
}

// BlocksByNumber returns all the blocks based on the specified to/from values.
func (h Handlers) BlocksByNumber(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	fromStr := web.Param(r, "from")
	if fromStr == "latest" || fromStr == "" {
		fromStr = fmt.Sprintf("%d", state.QueryLatest)
	}

	toStr := web.Param(r, "to")
	if toStr == "latest" || toStr == "" {
		toStr = fmt.Sprintf("%d", state.QueryLatest)
	}

	from, err := strconv.ParseUint(fromStr, 10, 64)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}
	to, err := strconv.ParseUint(toStr, 10, 64)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if from > to {
		return errs.NewTrusted(errors.New("from greater than to"), http.StatusBadRequest)
	}

	blocks := h.State.QueryBlocksByNumber(from, to)
	if len(blocks) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	blockData := make([]database.BlockData, len(blocks))
	for i, block := range blocks {
		blockData[i] = database.NewBlockData(block)
	}

	return web.Respond(ctx, w, blockData, http.StatusOK)
}

// Mempool returns the set of uncommitted transactions.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	mempool := h.State.RetrieveMempool()

	txs := make([]database.TxData, len(mempool))
	for i, tx := range mempool {
		txs[i] = database.NewTxData(tx)
	}

	return web.Respond(ctx, w, txs, http.StatusOK)
}

// SubmitPeer is called by a node so they can be added to the known peer list.
func (h Handlers) SubmitPeer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var pr peer.Peer
	if err := web.Decode(r, &pr); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if pr.Host == "" {
		return errs.NewFieldsError("host", errors.New("host is required"))
	}

	if h.State.AddKnownPeer(peer.New(pr.Host)) {
		h.Log.Infow("adding peer", "traceid", v.TraceID, "host", pr.Host)
	}

	return web.Respond(ctx, w, nil, http.StatusOK)
}

// =============================================================================

// decodeBlock reads a block from the request body. The block hash, when
// present, must match the header.
func decodeBlock(r *http.Request) (database.Block, error) {
	var blockData database.BlockData
	if err := web.Decode(r, &blockData); err != nil {
		return database.Block{}, errs.NewTrusted(err, http.StatusBadRequest)
	}

	block, err := database.ToBlock(blockData)
	if err != nil {
		return database.Block{}, errs.NewTrusted(fmt.Errorf("unable to decode block: %w", err), http.StatusBadRequest)
	}

	return block, nil
}
