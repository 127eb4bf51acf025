// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/siertrichain/siertrichain/app/services/node/handlers/v1/private"
	"github.com/siertrichain/siertrichain/app/services/node/handlers/v1/public"
	"github.com/siertrichain/siertrichain/foundation/blockchain/state"
	"github.com/siertrichain/siertrichain/foundation/events"
	"github.com/siertrichain/siertrichain/foundation/nameservice"
	"github.com/siertrichain/siertrichain/foundation/web"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	Evts  *events.Events
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		NS:    cfg.NS,
		Evts:  cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodGet, version, "/genesis/list", pbl.Genesis)
	app.Handle(http.MethodGet, version, "/status", pbl.Status)
	app.Handle(http.MethodGet, version, "/assets/list", pbl.Assets)
	app.Handle(http.MethodGet, version, "/assets/owner/:owner", pbl.Holdings)
	app.Handle(http.MethodGet, version, "/assets/hash/:hash", pbl.Asset)
	app.Handle(http.MethodGet, version, "/rewards/:account", pbl.RewardBalance)
	app.Handle(http.MethodGet, version, "/reward/:height", pbl.Reward)
	app.Handle(http.MethodGet, version, "/blocks/list/:from/:to", pbl.BlocksByNumber)
	app.Handle(http.MethodGet, version, "/blocks/hash/:hash", pbl.BlockByHash)
	app.Handle(http.MethodGet, version, "/blocks/proof/:number/:tx", pbl.MerkleProof)
	app.Handle(http.MethodGet, version, "/tx/uncommitted/list", pbl.Mempool)
	app.Handle(http.MethodPost, version, "/tx/submit", pbl.SubmitWalletTransaction)
}

// PrivateRoutes binds all the version 1 private routes.
func PrivateRoutes(app *web.App, cfg Config) {
	prv := private.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
	}

	app.Handle(http.MethodGet, version, "/node/status", prv.Status)
	app.Handle(http.MethodGet, version, "/node/block/list/:from/:to", prv.BlocksByNumber)
	app.Handle(http.MethodPost, version, "/node/block/propose", prv.ProposeBlock)
	app.Handle(http.MethodPost, version, "/node/block/validate", prv.ValidateBlock)
	app.Handle(http.MethodPost, version, "/node/chain/reorg", prv.Reorganize)
	app.Handle(http.MethodPost, version, "/node/tx/submit", prv.SubmitNodeTransaction)
	app.Handle(http.MethodGet, version, "/node/tx/list", prv.Mempool)
	app.Handle(http.MethodPost, version, "/node/peers", prv.SubmitPeer)
}
