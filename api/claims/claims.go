// Copyright (c) 2025 The Tally developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package claims

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/epochtally/tally/api/utils"
	"github.com/epochtally/tally/claimdb"
	"github.com/epochtally/tally/distributor"
	"github.com/epochtally/tally/tally"
)

const defaultHistoryLimit = 20

type Claims struct {
	dist *distributor.Distributor
	db   *claimdb.ClaimDB
}

// New create the claims endpoint. db may be nil when the host keeps no
// settlement history; the history route then responds 404.
func New(dist *distributor.Distributor, db *claimdb.ClaimDB) *Claims {
	return &Claims{
		dist,
		db,
	}
}

func parseAddress(s string) (*tally.Address, error) {
	addr, err := tally.ParseAddress(s)
	if err != nil {
		return nil, utils.BadRequest(errors.WithMessage(err, "address"))
	}
	return addr, nil
}

func (c *Claims) handleGetClaimable(w http.ResponseWriter, req *http.Request) error {
	addr, err := parseAddress(mux.Vars(req)["address"])
	if err != nil {
		return err
	}
	amount, next, err := c.dist.Claimable(*addr)
	if err != nil {
		return err
	}
	cursor, err := c.dist.Cursor(*addr)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, utils.M{
		"staker":               addr,
		"claimable":            amount.String(),
		"lastSettledEpoch":     cursor,
		"nextUnprocessedEpoch": next,
	})
}

func (c *Claims) handleGetHistory(w http.ResponseWriter, req *http.Request) error {
	if c.db == nil {
		return utils.NotFound(errors.New("settlement history not enabled"))
	}
	addr, err := parseAddress(mux.Vars(req)["address"])
	if err != nil {
		return err
	}

	filter := &claimdb.Filter{
		Staker:  addr,
		Order:   claimdb.DESC,
		Options: &claimdb.Options{Limit: defaultHistoryLimit},
	}
	query := req.URL.Query()
	if limit := query.Get("limit"); limit != "" {
		n, err := strconv.ParseUint(limit, 10, 32)
		if err != nil {
			return utils.BadRequest(errors.WithMessage(err, "limit"))
		}
		filter.Options.Limit = n
	}
	if offset := query.Get("offset"); offset != "" {
		n, err := strconv.ParseUint(offset, 10, 64)
		if err != nil {
			return utils.BadRequest(errors.WithMessage(err, "offset"))
		}
		filter.Options.Offset = n
	}

	records, err := c.db.Filter(req.Context(), filter)
	if err != nil {
		return err
	}
	if records == nil {
		records = []*claimdb.Record{}
	}
	return utils.WriteJSON(w, records)
}

func (c *Claims) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()
	sub.Path("/{address}/claimable").
		Methods(http.MethodGet).
		Name("claims_get_claimable").
		HandlerFunc(utils.WrapHandlerFunc(c.handleGetClaimable))
	sub.Path("/{address}/history").
		Methods(http.MethodGet).
		Name("claims_get_history").
		HandlerFunc(utils.WrapHandlerFunc(c.handleGetHistory))
}
