// Copyright (c) 2025 The Tally developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package rewards

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/epochtally/tally/api/utils"
	"github.com/epochtally/tally/rewardfeed"
)

type Rewards struct {
	feed *rewardfeed.Feed
}

func New(feed *rewardfeed.Feed) *Rewards {
	return &Rewards{
		feed,
	}
}

func (r *Rewards) handleGetReport(w http.ResponseWriter, req *http.Request) error {
	epoch, err := strconv.ParseUint(mux.Vars(req)["epoch"], 10, 64)
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "epoch"))
	}
	status, err := r.feed.Status(epoch)
	if err != nil {
		return err
	}
	resp := utils.M{"epoch": epoch, "status": status.String()}
	if summary, err := r.feed.Summary(epoch); err == nil {
		resp["summary"] = summary
	} else if err != rewardfeed.ErrNotSealed {
		return err
	}
	return utils.WriteJSON(w, resp)
}

func (r *Rewards) handleGetNext(w http.ResponseWriter, _ *http.Request) error {
	next, err := r.feed.NextEpoch()
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, utils.M{"nextEpoch": next})
}

func (r *Rewards) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()
	sub.Path("/next").
		Methods(http.MethodGet).
		Name("rewards_get_next").
		HandlerFunc(utils.WrapHandlerFunc(r.handleGetNext))
	sub.Path("/{epoch}").
		Methods(http.MethodGet).
		Name("rewards_get_report").
		HandlerFunc(utils.WrapHandlerFunc(r.handleGetReport))
}
