package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/siertrichain/siertrichain/app/services/node/handlers"
	"github.com/siertrichain/siertrichain/foundation/blockchain/database"
	"github.com/siertrichain/siertrichain/foundation/blockchain/genesis"
	"github.com/siertrichain/siertrichain/foundation/blockchain/geometry"
	"github.com/siertrichain/siertrichain/foundation/blockchain/merkle"
	"github.com/siertrichain/siertrichain/foundation/blockchain/peer"
	"github.com/siertrichain/siertrichain/foundation/blockchain/signature"
	"github.com/siertrichain/siertrichain/foundation/blockchain/state"
	"github.com/siertrichain/siertrichain/foundation/blockchain/storage/memory"
	"github.com/siertrichain/siertrichain/foundation/events"
	"github.com/siertrichain/siertrichain/foundation/logger"
	"github.com/siertrichain/siertrichain/foundation/nameservice"
)

const (
	ownerHexKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	miner       = database.AccountID("0xF01813E4B85e178A83e29B8E7bF26BD830a25f32")
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type fixture struct {
	g       genesis.Genesis
	st      *state.State
	owner   signature.PrivateKey
	public  http.Handler
	private http.Handler
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	g := genesis.Default()
	g.Difficulty = 4

	mem, err := memory.New()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct memory storage: %s", failed, err)
	}

	st, err := state.New(state.Config{
		BeneficiaryID: miner,
		Host:          "localhost:9080",
		Storage:       mem,
		Genesis:       g,
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the state: %s", failed, err)
	}

	ns, err := nameservice.New(t.TempDir())
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the name service: %s", failed, err)
	}

	key, err := crypto.HexToECDSA(ownerHexKey)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to load the key: %s", failed, err)
	}

	cfg := handlers.MuxConfig{
		Shutdown: make(chan os.Signal, 1),
		Log:      logger.NewNop(),
		State:    st,
		NS:       ns,
		Evts:     events.New(),
	}

	return fixture{
		g:       g,
		st:      st,
		owner:   signature.NewPrivateKey(key),
		public:  handlers.PublicMux(cfg),
		private: handlers.PrivateMux(cfg),
	}
}

func call(t *testing.T, h http.Handler, method string, url string, body any, resp any) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("\t%s\tShould be able to encode the body: %s", failed, err)
		}
	}

	r := httptest.NewRequest(method, url, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if resp != nil && w.Code == http.StatusOK {
		if err := json.NewDecoder(w.Body).Decode(resp); err != nil {
			t.Fatalf("\t%s\tShould be able to decode the response of %s: %s", failed, url, err)
		}
	}

	return w.Code
}

func (f fixture) subdivision(t *testing.T) database.SubdivisionTx {
	t.Helper()

	tx, err := database.NewSubdivisionTx(geometry.Genesis(f.g.Owner), 5, 1)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a subdivision: %s", failed, err)
	}

	signed, err := tx.Sign(f.owner)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to sign a subdivision: %s", failed, err)
	}

	return signed
}

func (f fixture) mine(t *testing.T, trans ...database.Tx) database.Block {
	t.Helper()

	prev := f.st.RetrieveLatestBlock()
	number := prev.Header.Number + 1
	trans = append([]database.Tx{database.NewCoinbaseTx(f.st.RewardSchedule().Reward(number), miner)}, trans...)

	block := database.Block{
		Header: database.BlockHeader{
			Number:        number,
			PrevBlockHash: prev.Hash(),
			TimeStamp:     prev.Header.TimeStamp + 60,
			MerkleRoot:    merkle.Root(database.Block{Trans: trans}.TxHashes()),
			Difficulty:    f.st.QueryDifficulty(),
		},
		Trans: trans,
	}

	for signature.LeadingZeroBits(block.Hash()) < int(block.Header.Difficulty) {
		block.Header.Nonce++
	}

	return block
}

// =============================================================================

func TestPublicRoutes(t *testing.T) {
	f := newFixture(t)
	gen := geometry.Genesis(f.g.Owner)

	t.Log("Given the need to query the ledger through the public API.")
	{
		var status struct {
			Height     uint64 `json:"height"`
			Assets     int    `json:"assets"`
			NextReward uint64 `json:"next_reward"`
		}
		if code := call(t, f.public, http.MethodGet, "/v1/status", nil, &status); code != http.StatusOK {
			t.Fatalf("\t%s\tShould get the status: got %d", failed, code)
		}
		if status.Height != 0 || status.Assets != 1 || status.NextReward != f.g.InitialReward {
			t.Fatalf("\t%s\tShould report the genesis state: %+v", failed, status)
		}
		t.Logf("\t%s\tShould report the genesis state.", success)

		var asset struct {
			Hash  string `json:"hash"`
			Owner string `json:"owner"`
		}
		if code := call(t, f.public, http.MethodGet, "/v1/assets/hash/"+gen.Hash(), nil, &asset); code != http.StatusOK {
			t.Fatalf("\t%s\tShould get the genesis asset: got %d", failed, code)
		}
		if asset.Hash != gen.Hash() || asset.Owner != f.g.Owner {
			t.Fatalf("\t%s\tShould return the genesis asset: %+v", failed, asset)
		}
		t.Logf("\t%s\tShould return the genesis asset.", success)

		if code := call(t, f.public, http.MethodGet, "/v1/assets/hash/0xdead", nil, nil); code != http.StatusNotFound {
			t.Fatalf("\t%s\tShould get 404 for an unknown asset: got %d", failed, code)
		}
		t.Logf("\t%s\tShould get 404 for an unknown asset.", success)

		var rwd struct {
			Era    uint64 `json:"era"`
			Reward uint64 `json:"reward"`
		}
		url := fmt.Sprintf("/v1/reward/%d", f.g.HalvingInterval)
		if code := call(t, f.public, http.MethodGet, url, nil, &rwd); code != http.StatusOK {
			t.Fatalf("\t%s\tShould get the reward: got %d", failed, code)
		}
		if rwd.Era != 1 || rwd.Reward != f.g.InitialReward/2 {
			t.Fatalf("\t%s\tShould halve the reward in era 1: %+v", failed, rwd)
		}
		t.Logf("\t%s\tShould halve the reward in era 1.", success)

		var blocks []struct {
			Number uint64 `json:"number"`
		}
		if code := call(t, f.public, http.MethodGet, "/v1/blocks/list/0/latest", nil, &blocks); code != http.StatusOK || len(blocks) != 1 {
			t.Fatalf("\t%s\tShould list the genesis block: got %d blocks[%d]", failed, code, len(blocks))
		}
		t.Logf("\t%s\tShould list the genesis block.", success)

		if code := call(t, f.public, http.MethodGet, "/v1/blocks/list/2/1", nil, nil); code != http.StatusBadRequest {
			t.Fatalf("\t%s\tShould reject an inverted range: got %d", failed, code)
		}
		t.Logf("\t%s\tShould reject an inverted range.", success)
	}

	t.Log("Given the need to submit wallet transactions.")
	{
		tx := f.subdivision(t)

		if code := call(t, f.public, http.MethodPost, "/v1/tx/submit", database.NewTxData(tx), nil); code != http.StatusOK {
			t.Fatalf("\t%s\tShould accept a signed subdivision: got %d", failed, code)
		}
		t.Logf("\t%s\tShould accept a signed subdivision.", success)

		var pool []struct {
			Hash string `json:"hash"`
			Fee  uint64 `json:"fee"`
		}
		if code := call(t, f.public, http.MethodGet, "/v1/tx/uncommitted/list", nil, &pool); code != http.StatusOK || len(pool) != 1 {
			t.Fatalf("\t%s\tShould list the transaction in the mempool: got %d pool[%d]", failed, code, len(pool))
		}
		if pool[0].Hash != tx.Hash() || pool[0].Fee != 5 {
			t.Fatalf("\t%s\tShould list the submitted transaction: %+v", failed, pool[0])
		}
		t.Logf("\t%s\tShould list the transaction in the mempool.", success)

		unsigned := tx
		unsigned.Signature = nil
		unsigned.Nonce = 2
		if code := call(t, f.public, http.MethodPost, "/v1/tx/submit", database.NewTxData(unsigned), nil); code != http.StatusBadRequest {
			t.Fatalf("\t%s\tShould reject an unsigned transaction: got %d", failed, code)
		}
		t.Logf("\t%s\tShould reject an unsigned transaction.", success)

		bad := database.TxData{Kind: "mint"}
		if code := call(t, f.public, http.MethodPost, "/v1/tx/submit", bad, nil); code != http.StatusBadRequest {
			t.Fatalf("\t%s\tShould reject an unknown kind: got %d", failed, code)
		}
		t.Logf("\t%s\tShould reject an unknown kind.", success)

		coinbase := database.NewTxData(database.NewCoinbaseTx(1, miner))
		if code := call(t, f.public, http.MethodPost, "/v1/tx/submit", coinbase, nil); code != http.StatusBadRequest {
			t.Fatalf("\t%s\tShould reject a coinbase from a wallet: got %d", failed, code)
		}
		t.Logf("\t%s\tShould reject a coinbase from a wallet.", success)
	}
}

func TestPrivateRoutes(t *testing.T) {
	f := newFixture(t)

	t.Log("Given the need to exchange blocks between nodes.")
	{
		var status peer.PeerStatus
		if code := call(t, f.private, http.MethodGet, "/v1/node/status", nil, &status); code != http.StatusOK {
			t.Fatalf("\t%s\tShould get the node status: got %d", failed, code)
		}
		if status.LatestBlockNumber != 0 || status.Difficulty != f.g.Difficulty {
			t.Fatalf("\t%s\tShould report the genesis tip: %+v", failed, status)
		}
		t.Logf("\t%s\tShould report the genesis tip.", success)

		block := f.mine(t, f.subdivision(t))
		blockData := database.NewBlockData(block)

		var check struct {
			Valid bool   `json:"valid"`
			Error string `json:"error"`
		}
		if code := call(t, f.private, http.MethodPost, "/v1/node/block/validate", blockData, &check); code != http.StatusOK || !check.Valid {
			t.Fatalf("\t%s\tShould validate the block: got %d %+v", failed, code, check)
		}
		if f.st.QueryHeight() != 0 {
			t.Fatalf("\t%s\tShould not apply a validated block.", failed)
		}
		t.Logf("\t%s\tShould validate the block without applying it.", success)

		if code := call(t, f.private, http.MethodPost, "/v1/node/block/propose", blockData, nil); code != http.StatusOK {
			t.Fatalf("\t%s\tShould accept the proposed block: got %d", failed, code)
		}
		if f.st.QueryHeight() != 1 || f.st.QueryAssetCount() != 3 {
			t.Fatalf("\t%s\tShould apply the proposed block: height %d assets %d", failed, f.st.QueryHeight(), f.st.QueryAssetCount())
		}
		t.Logf("\t%s\tShould apply the proposed block.", success)

		if code := call(t, f.private, http.MethodPost, "/v1/node/block/propose", blockData, nil); code != http.StatusNotAcceptable {
			t.Fatalf("\t%s\tShould not accept the same block twice: got %d", failed, code)
		}
		t.Logf("\t%s\tShould not accept the same block twice.", success)

		var blocks []database.BlockData
		if code := call(t, f.private, http.MethodGet, "/v1/node/block/list/1/latest", nil, &blocks); code != http.StatusOK || len(blocks) != 1 {
			t.Fatalf("\t%s\tShould list the new block: got %d blocks[%d]", failed, code, len(blocks))
		}
		if blocks[0].Hash != block.Hash() {
			t.Fatalf("\t%s\tShould return the block with its hash: got %s", failed, blocks[0].Hash)
		}
		t.Logf("\t%s\tShould list the new block.", success)

		if code := call(t, f.private, http.MethodGet, "/v1/node/block/list/2/latest", nil, nil); code != http.StatusNoContent {
			t.Fatalf("\t%s\tShould get no content above the tip: got %d", failed, code)
		}
		t.Logf("\t%s\tShould get no content above the tip.", success)
	}

	t.Log("Given the need to learn about new peers.")
	{
		if code := call(t, f.private, http.MethodPost, "/v1/node/peers", peer.New("http://10.0.0.7:9080/"), nil); code != http.StatusOK {
			t.Fatalf("\t%s\tShould accept the peer: got %d", failed, code)
		}

		var found bool
		for _, pr := range f.st.RetrieveKnownPeers() {
			if pr.Match("10.0.0.7:9080") {
				found = true
			}
		}
		if !found {
			t.Fatalf("\t%s\tShould add the peer to the known peers.", failed)
		}
		t.Logf("\t%s\tShould add the peer to the known peers.", success)
	}
}
