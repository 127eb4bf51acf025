package state_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/siertrichain/siertrichain/foundation/blockchain/database"
	"github.com/siertrichain/siertrichain/foundation/blockchain/genesis"
	"github.com/siertrichain/siertrichain/foundation/blockchain/geometry"
	"github.com/siertrichain/siertrichain/foundation/blockchain/merkle"
	"github.com/siertrichain/siertrichain/foundation/blockchain/peer"
	"github.com/siertrichain/siertrichain/foundation/blockchain/signature"
	"github.com/siertrichain/siertrichain/foundation/blockchain/state"
	"github.com/siertrichain/siertrichain/foundation/blockchain/storage/memory"
)

const (
	ownerHexKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	otherHexKey = "9f332e3700d8fc2446eaf6d15034cf96e0c2745e40353deef032a5dbf1dfed93"
	miner       = database.AccountID("0xF01813E4B85e178A83e29B8E7bF26BD830a25f32")
	difficulty  = 4
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// =============================================================================

func testGenesis() genesis.Genesis {
	g := genesis.Default()
	g.Difficulty = difficulty
	g.AdjustWindow = 2
	g.TargetBlockTime = genesis.Duration(time.Minute)

	return g
}

func newState(t *testing.T, g genesis.Genesis, storage state.Storage) *state.State {
	t.Helper()

	if storage == nil {
		mem, err := memory.New()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct memory storage: %s", failed, err)
		}
		storage = mem
	}

	st, err := state.New(state.Config{
		BeneficiaryID: miner,
		Host:          "localhost:9080",
		Storage:       storage,
		Genesis:       g,
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the state: %s", failed, err)
	}

	return st
}

func loadKey(t *testing.T, hexKey string) signature.PrivateKey {
	t.Helper()

	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to load the key: %s", failed, err)
	}

	return signature.NewPrivateKey(key)
}

func subdivide(t *testing.T, parent geometry.Triangle, nonce uint64, signer signature.Signer) database.SubdivisionTx {
	t.Helper()

	tx, err := database.NewSubdivisionTx(parent, 1, nonce)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a subdivision: %s", failed, err)
	}

	signed, err := tx.Sign(signer)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to sign a subdivision: %s", failed, err)
	}

	return signed
}

func transfer(t *testing.T, input string, to database.AccountID, from signature.PrivateKey, nonce uint64) database.TransferTx {
	t.Helper()

	tx, err := database.NewTransferTx(input, to, database.AccountID(from.Address()), 1, nonce, "")
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a transfer: %s", failed, err)
	}

	signed, err := tx.Sign(from)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to sign a transfer: %s", failed, err)
	}

	return signed
}

// mineAt solves a block on top of prev with the specified timestamp. The
// coinbase for the block is placed in front of the transactions.
func mineAt(t *testing.T, st *state.State, prev database.Block, diff uint, timeStamp uint64, trans ...database.Tx) database.Block {
	t.Helper()

	number := prev.Header.Number + 1
	coinbase := database.NewCoinbaseTx(st.RewardSchedule().Reward(number), miner)
	trans = append([]database.Tx{coinbase}, trans...)

	block := database.Block{
		Header: database.BlockHeader{
			Number:        number,
			PrevBlockHash: prev.Hash(),
			TimeStamp:     timeStamp,
			MerkleRoot:    merkle.Root(database.Block{Trans: trans}.TxHashes()),
			Difficulty:    diff,
		},
		Trans: trans,
	}

	for signature.LeadingZeroBits(block.Hash()) < int(diff) {
		block.Header.Nonce++
	}

	return block
}

// =============================================================================

func TestApplyBlock(t *testing.T) {
	owner := loadKey(t, ownerHexKey)

	t.Log("Given the need to extend the chain with a valid block.")
	{
		g := testGenesis()
		storage, _ := memory.New()
		st := newState(t, g, storage)

		gen := geometry.Genesis(g.Owner)
		tip := st.RetrieveLatestBlock()
		block := mineAt(t, st, tip, difficulty, tip.Header.TimeStamp+60, subdivide(t, gen, 1, owner))

		if err := st.ApplyBlock(block); err != nil {
			t.Fatalf("\t%s\tShould be able to apply the block: %s", failed, err)
		}
		t.Logf("\t%s\tShould be able to apply the block.", success)

		if h := st.QueryHeight(); h != 1 {
			t.Fatalf("\t%s\tShould be at height 1: got %d", failed, h)
		}
		if n := st.QueryAssetCount(); n != 3 {
			t.Fatalf("\t%s\tShould have +2 assets after a subdivision: got %d", failed, n)
		}
		if _, err := st.QueryAsset(gen.Hash()); !errors.Is(err, database.ErrAssetNotFound) {
			t.Fatalf("\t%s\tShould not find the parent asset: %v", failed, err)
		}
		t.Logf("\t%s\tShould replace the parent with its three children.", success)

		if got := st.QueryRewardBalance(miner); got != g.InitialReward {
			t.Fatalf("\t%s\tShould credit the coinbase reward: got %d, exp %d", failed, got, g.InitialReward)
		}
		t.Logf("\t%s\tShould credit the coinbase reward.", success)

		if got := st.QueryHoldings(database.AccountID(owner.Address())); len(got) != 3 {
			t.Fatalf("\t%s\tShould have the owner holding 3 assets: got %d", failed, len(got))
		}
		t.Logf("\t%s\tShould have the owner holding the children.", success)

		snapshot, err := storage.Load()
		if err != nil || snapshot.Height != 1 || len(snapshot.Blocks) != 1 {
			t.Fatalf("\t%s\tShould persist the block: height %d blocks %d: %v", failed, snapshot.Height, len(snapshot.Blocks), err)
		}
		t.Logf("\t%s\tShould persist the block.", success)

		if err := st.ApplyBlock(block); !errors.Is(err, database.ErrInvalidBlockLinkage) {
			t.Fatalf("\t%s\tShould reject the same block twice: %v", failed, err)
		}
		if stats := st.QueryStats(); stats.BlocksApplied != 1 || stats.BlocksRejected != 1 {
			t.Fatalf("\t%s\tShould count applied and rejected blocks: %+v", failed, stats)
		}
		t.Logf("\t%s\tShould reject the same block twice.", success)

		found, err := st.QueryBlockByHash(block.Hash())
		if err != nil || found.Header.Number != 1 {
			t.Fatalf("\t%s\tShould find the block by hash: %v", failed, err)
		}
		t.Logf("\t%s\tShould find the block by hash.", success)

		txHash := block.Trans[1].Hash()
		proof, root, err := st.QueryMerkleProof(1, txHash)
		if err != nil {
			t.Fatalf("\t%s\tShould get a merkle proof: %s", failed, err)
		}
		if err := merkle.VerifyProof(txHash, proof, root); err != nil {
			t.Fatalf("\t%s\tShould verify the merkle proof: %s", failed, err)
		}
		t.Logf("\t%s\tShould produce a verifiable merkle proof.", success)
	}
}

func TestValidateThenMutate(t *testing.T) {
	owner := loadKey(t, ownerHexKey)
	other := loadKey(t, otherHexKey)

	t.Log("Given a block whose first transaction is valid and a later one is not.")
	{
		g := testGenesis()
		storage, _ := memory.New()
		st := newState(t, g, storage)

		gen := geometry.Genesis(g.Owner)
		tip := st.RetrieveLatestBlock()
		ownerID := database.AccountID(owner.Address())

		spent := transfer(t, gen.Hash(), database.AccountID(other.Address()), owner, 2)
		block := mineAt(t, st, tip, difficulty, tip.Header.TimeStamp+60, subdivide(t, gen, 1, owner), spent)

		if err := st.ApplyBlock(block); err == nil {
			t.Fatalf("\t%s\tShould reject the block.", failed)
		}
		t.Logf("\t%s\tShould reject the block.", success)

		if h := st.QueryHeight(); h != 0 {
			t.Fatalf("\t%s\tShould stay at height 0: got %d", failed, h)
		}
		if latest := st.RetrieveLatestBlock(); latest.Hash() != tip.Hash() {
			t.Fatalf("\t%s\tShould keep genesis as the tip: got %s", failed, latest.Hash())
		}
		t.Logf("\t%s\tShould keep the tip unchanged.", success)

		if n := st.QueryAssetCount(); n != 1 {
			t.Fatalf("\t%s\tShould keep a single asset: got %d", failed, n)
		}
		if _, err := st.QueryAsset(gen.Hash()); err != nil {
			t.Fatalf("\t%s\tShould still find the genesis asset: %s", failed, err)
		}
		if got := st.QueryHoldings(ownerID); len(got) != 1 || got[0].Hash() != gen.Hash() {
			t.Fatalf("\t%s\tShould leave the owner holding only genesis: got %v", failed, got)
		}
		if got := st.QueryRewardBalance(miner); got != 0 {
			t.Fatalf("\t%s\tShould not credit the coinbase: got %d", failed, got)
		}
		t.Logf("\t%s\tShould leave the ledger unchanged.", success)

		snapshot, err := storage.Load()
		if err != nil || snapshot.Height != 0 || len(snapshot.Blocks) != 0 {
			t.Fatalf("\t%s\tShould persist nothing: height %d blocks %d: %v", failed, snapshot.Height, len(snapshot.Blocks), err)
		}
		t.Logf("\t%s\tShould persist nothing.", success)

		valid := mineAt(t, st, tip, difficulty, tip.Header.TimeStamp+60, subdivide(t, gen, 1, owner))
		if err := st.ApplyBlock(valid); err != nil {
			t.Fatalf("\t%s\tShould still accept a valid block afterwards: %s", failed, err)
		}
		t.Logf("\t%s\tShould still accept a valid block afterwards.", success)
	}
}

func TestDifficultyAdjustment(t *testing.T) {
	type table struct {
		name  string
		delta uint64
		exp   uint
	}

	tt := []table{
		{name: "fast", delta: 10, exp: difficulty * 4},
		{name: "slow", delta: 10_000, exp: 1},
		{name: "ontarget", delta: 60, exp: difficulty},
	}

	t.Log("Given the need to adjust the difficulty at window boundaries.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				st := newState(t, testGenesis(), nil)

				tip := st.RetrieveLatestBlock()
				b1 := mineAt(t, st, tip, difficulty, tip.Header.TimeStamp+tst.delta)
				if err := st.ApplyBlock(b1); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould apply block 1: %s", failed, testID, err)
				}

				if d := st.QueryDifficulty(); d != difficulty {
					t.Fatalf("\t%s\tTest %d:\tShould keep the difficulty inside the window: got %d", failed, testID, d)
				}

				b2 := mineAt(t, st, b1, difficulty, b1.Header.TimeStamp+tst.delta)
				if err := st.ApplyBlock(b2); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould apply block 2: %s", failed, testID, err)
				}

				if d := st.QueryDifficulty(); d != tst.exp {
					t.Fatalf("\t%s\tTest %d:\tShould adjust the difficulty: got %d, exp %d", failed, testID, d, tst.exp)
				}
				t.Logf("\t%s\tTest %d:\tShould adjust the difficulty to %d.", success, testID, tst.exp)
			}

			t.Run(tst.name, f)
		}
	}
}

func TestReorganize(t *testing.T) {
	owner := loadKey(t, ownerHexKey)
	other := loadKey(t, otherHexKey)

	t.Log("Given the need to adopt a longer valid chain.")
	{
		g := testGenesis()
		gen := geometry.Genesis(g.Owner)

		// Local chain: the genesis asset is subdivided.
		local := newState(t, g, nil)
		tip := local.RetrieveLatestBlock()
		if err := local.ApplyBlock(mineAt(t, local, tip, difficulty, tip.Header.TimeStamp+60, subdivide(t, gen, 1, owner))); err != nil {
			t.Fatalf("\t%s\tShould apply the local block: %s", failed, err)
		}

		// Competing chain: the genesis asset is transferred and another
		// block is mined on top.
		remote := newState(t, g, nil)
		tip = remote.RetrieveLatestBlock()
		r1 := mineAt(t, remote, tip, difficulty, tip.Header.TimeStamp+60, transfer(t, gen.Hash(), database.AccountID(other.Address()), owner, 1))
		if err := remote.ApplyBlock(r1); err != nil {
			t.Fatalf("\t%s\tShould apply remote block 1: %s", failed, err)
		}
		r2 := mineAt(t, remote, r1, difficulty, r1.Header.TimeStamp+60)
		if err := remote.ApplyBlock(r2); err != nil {
			t.Fatalf("\t%s\tShould apply remote block 2: %s", failed, err)
		}

		before := local.QueryAssets()

		if err := local.Reorganize(remote.QueryChain()[:2]); !errors.Is(err, state.ErrChainNotPreferred) {
			t.Fatalf("\t%s\tShould not adopt a chain of the same length: %v", failed, err)
		}
		t.Logf("\t%s\tShould not adopt a chain of the same length.", success)

		g2 := testGenesis()
		g2.Date = g2.Date.Add(time.Hour)
		foreign := newState(t, g2, nil).QueryChain()
		foreign = append(foreign, remote.QueryChain()[1:]...)
		if err := local.Reorganize(foreign); !errors.Is(err, state.ErrChainNotPreferred) {
			t.Fatalf("\t%s\tShould not adopt a chain with a different genesis: %v", failed, err)
		}
		t.Logf("\t%s\tShould not adopt a chain with a different genesis.", success)

		bad := remote.QueryChain()
		bad = append(bad, mineAt(t, remote, r2, difficulty, r2.Header.TimeStamp+60, subdivide(t, gen, 2, stranger(t))))
		if err := local.Reorganize(bad); err == nil {
			t.Fatalf("\t%s\tShould reject a chain with an invalid block.", failed)
		}
		if local.QueryHeight() != 1 || len(local.QueryAssets()) != len(before) {
			t.Fatalf("\t%s\tShould leave the canonical chain untouched after a failed reorg.", failed)
		}
		t.Logf("\t%s\tShould leave the canonical chain untouched after a failed reorg.", success)

		if err := local.Reorganize(remote.QueryChain()); err != nil {
			t.Fatalf("\t%s\tShould adopt the longer chain: %s", failed, err)
		}
		t.Logf("\t%s\tShould adopt the longer chain.", success)

		if local.QueryHeight() != 2 || local.RetrieveLatestBlock().Hash() != r2.Hash() {
			t.Fatalf("\t%s\tShould have the remote tip: height %d", failed, local.QueryHeight())
		}

		got, exp := local.QueryAssets(), remote.QueryAssets()
		if len(got) != len(exp) {
			t.Fatalf("\t%s\tShould have the remote ledger: got %d assets, exp %d", failed, len(got), len(exp))
		}
		for i := range got {
			if !got[i].Equals(exp[i]) {
				t.Fatalf("\t%s\tShould have the remote ledger: asset %d differs", failed, i)
			}
		}
		if local.QueryRewardBalance(miner) != remote.QueryRewardBalance(miner) {
			t.Fatalf("\t%s\tShould have the remote reward balances.", failed)
		}
		t.Logf("\t%s\tShould have a ledger equal to replaying the new chain.", success)

		if n := local.QueryMempoolLength(); n != 0 {
			t.Fatalf("\t%s\tShould drop orphaned transactions that no longer validate: got %d", failed, n)
		}
		if stats := local.QueryStats(); stats.Reorgs != 1 {
			t.Fatalf("\t%s\tShould count the reorganization: got %d", failed, stats.Reorgs)
		}
		t.Logf("\t%s\tShould drop orphaned transactions that no longer validate.", success)
	}
}

// stranger returns a key that owns nothing on any chain in these tests.
func stranger(t *testing.T) signature.PrivateKey {
	t.Helper()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate a key: %s", failed, err)
	}

	return signature.NewPrivateKey(key)
}

func TestRestore(t *testing.T) {
	owner := loadKey(t, ownerHexKey)

	t.Log("Given the need to restart a node from storage.")
	{
		g := testGenesis()
		gen := geometry.Genesis(g.Owner)
		storage, _ := memory.New()

		st := newState(t, g, storage)
		tip := st.RetrieveLatestBlock()
		b1 := mineAt(t, st, tip, difficulty, tip.Header.TimeStamp+60, subdivide(t, gen, 1, owner))
		if err := st.ApplyBlock(b1); err != nil {
			t.Fatalf("\t%s\tShould apply block 1: %s", failed, err)
		}
		b2 := mineAt(t, st, b1, difficulty, b1.Header.TimeStamp+60, subdivide(t, geometry.Subdivide(gen)[0], 2, owner))
		if err := st.ApplyBlock(b2); err != nil {
			t.Fatalf("\t%s\tShould apply block 2: %s", failed, err)
		}

		restored := newState(t, g, storage)
		if restored.QueryHeight() != 2 || restored.RetrieveLatestBlock().Hash() != b2.Hash() {
			t.Fatalf("\t%s\tShould restore the chain: height %d", failed, restored.QueryHeight())
		}
		if restored.QueryAssetCount() != 5 || restored.QueryDifficulty() != st.QueryDifficulty() {
			t.Fatalf("\t%s\tShould restore the ledger: assets %d", failed, restored.QueryAssetCount())
		}
		t.Logf("\t%s\tShould restore the chain and ledger.", success)

		snapshot, _ := storage.Load()
		snapshot.Rewards = map[database.AccountID]uint64{miner: 1}
		if err := storage.Save(snapshot); err != nil {
			t.Fatalf("\t%s\tShould be able to tamper with storage: %s", failed, err)
		}

		_, err := state.New(state.Config{BeneficiaryID: miner, Storage: storage, Genesis: g})
		if err == nil {
			t.Fatalf("\t%s\tShould refuse a stored ledger that does not match the chain.", failed)
		}
		t.Logf("\t%s\tShould refuse a stored ledger that does not match the chain.", success)
	}
}

func TestSubmitAndMine(t *testing.T) {
	owner := loadKey(t, ownerHexKey)
	other := loadKey(t, otherHexKey)

	t.Log("Given the need to mine submitted transactions.")
	{
		g := testGenesis()
		gen := geometry.Genesis(g.Owner)
		st := newState(t, g, nil)

		if _, err := st.MineNewBlock(context.Background()); !errors.Is(err, state.ErrNoTransactions) {
			t.Fatalf("\t%s\tShould not mine with an empty mempool: %v", failed, err)
		}
		t.Logf("\t%s\tShould not mine with an empty mempool.", success)

		if err := st.SubmitTransaction(database.NewCoinbaseTx(1000, miner)); !state.IsInvalidTransaction(err) {
			t.Fatalf("\t%s\tShould reject a submitted coinbase: %v", failed, err)
		}
		if err := st.SubmitTransaction(subdivide(t, gen, 1, other)); !state.IsInvalidTransaction(err) {
			t.Fatalf("\t%s\tShould reject a subdivision by a non owner: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject transactions that do not validate.", success)

		if err := st.SubmitTransaction(subdivide(t, gen, 1, owner)); err != nil {
			t.Fatalf("\t%s\tShould accept a valid subdivision: %s", failed, err)
		}
		if n := st.QueryMempoolLength(); n != 1 {
			t.Fatalf("\t%s\tShould hold the transaction in the mempool: got %d", failed, n)
		}
		t.Logf("\t%s\tShould accept a valid subdivision.", success)

		block, err := st.MineNewBlock(context.Background())
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine a block: %s", failed, err)
		}
		if len(block.Trans) != 2 {
			t.Fatalf("\t%s\tShould mine the coinbase and the subdivision: got %d", failed, len(block.Trans))
		}
		if _, ok := block.Trans[0].(database.CoinbaseTx); !ok {
			t.Fatalf("\t%s\tShould put the coinbase first: got %T", failed, block.Trans[0])
		}
		t.Logf("\t%s\tShould be able to mine a block.", success)

		if st.QueryHeight() != 1 || st.QueryAssetCount() != 3 || st.QueryMempoolLength() != 0 {
			t.Fatalf("\t%s\tShould apply the mined block: height %d assets %d mempool %d", failed, st.QueryHeight(), st.QueryAssetCount(), st.QueryMempoolLength())
		}
		t.Logf("\t%s\tShould apply the mined block and clear the mempool.", success)
	}
}

func TestNetRequestPeerBlocks(t *testing.T) {
	owner := loadKey(t, ownerHexKey)
	other := loadKey(t, otherHexKey)

	t.Log("Given the need to catch up with a peer on a different branch.")
	{
		g := testGenesis()
		gen := geometry.Genesis(g.Owner)

		remote := newState(t, g, nil)
		tip := remote.RetrieveLatestBlock()
		r1 := mineAt(t, remote, tip, difficulty, tip.Header.TimeStamp+60, transfer(t, gen.Hash(), database.AccountID(other.Address()), owner, 1))
		if err := remote.ApplyBlock(r1); err != nil {
			t.Fatalf("\t%s\tShould apply remote block 1: %s", failed, err)
		}
		if err := remote.ApplyBlock(mineAt(t, remote, r1, difficulty, r1.Header.TimeStamp+60)); err != nil {
			t.Fatalf("\t%s\tShould apply remote block 2: %s", failed, err)
		}

		// The peer only serves the block list the way a node does.
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var from uint64
			if _, err := fmt.Sscanf(r.URL.Path, "/v1/node/block/list/%d/latest", &from); err != nil {
				http.NotFound(w, r)
				return
			}

			var out []database.BlockData
			for _, block := range remote.QueryBlocksByNumber(from, state.QueryLatest) {
				out = append(out, database.NewBlockData(block))
			}
			json.NewEncoder(w).Encode(out)
		}))
		defer srv.Close()

		local := newState(t, g, nil)
		tip = local.RetrieveLatestBlock()
		if err := local.ApplyBlock(mineAt(t, local, tip, difficulty, tip.Header.TimeStamp+30, subdivide(t, gen, 1, owner))); err != nil {
			t.Fatalf("\t%s\tShould apply the local block: %s", failed, err)
		}

		pr := peer.New(srv.Listener.Addr().String())
		if err := local.NetRequestPeerBlocks(pr); err != nil {
			t.Fatalf("\t%s\tShould be able to sync from the peer: %s", failed, err)
		}
		t.Logf("\t%s\tShould be able to sync from the peer.", success)

		if local.RetrieveLatestBlock().Hash() != remote.RetrieveLatestBlock().Hash() {
			t.Fatalf("\t%s\tShould end on the peer's tip: height %d", failed, local.QueryHeight())
		}
		if stats := local.QueryStats(); stats.Reorgs != 1 {
			t.Fatalf("\t%s\tShould have reorganized onto the peer's chain: got %d", failed, stats.Reorgs)
		}
		t.Logf("\t%s\tShould reorganize onto the peer's longer chain.", success)
	}
}
