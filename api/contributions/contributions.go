// Copyright (c) 2025 The Tally developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package contributions

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/epochtally/tally/api/utils"
	"github.com/epochtally/tally/contribution"
	"github.com/epochtally/tally/tally"
)

type Contributions struct {
	feed *contribution.Feed
}

func New(feed *contribution.Feed) *Contributions {
	return &Contributions{
		feed,
	}
}

func parseEpoch(s string) (uint64, error) {
	epoch, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, utils.BadRequest(errors.WithMessage(err, "epoch"))
	}
	return epoch, nil
}

func tallyAddress(s string) (*tally.Address, error) {
	addr, err := tally.ParseAddress(s)
	if err != nil {
		return nil, utils.BadRequest(errors.WithMessage(err, "address"))
	}
	return addr, nil
}

func (c *Contributions) handleGetNext(w http.ResponseWriter, _ *http.Request) error {
	next, err := c.feed.NextEpoch()
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, utils.M{"nextEpoch": next})
}

func (c *Contributions) handleGetReport(w http.ResponseWriter, req *http.Request) error {
	epoch, err := parseEpoch(mux.Vars(req)["epoch"])
	if err != nil {
		return err
	}
	status, err := c.feed.Status(epoch)
	if err != nil {
		return err
	}
	resp := utils.M{"epoch": epoch, "status": status.String()}
	if summary, err := c.feed.Summary(epoch); err == nil {
		resp["summary"] = summary
	} else if err != contribution.ErrNotSealed {
		return err
	}
	return utils.WriteJSON(w, resp)
}

func (c *Contributions) handleGetWeight(w http.ResponseWriter, req *http.Request) error {
	epoch, err := parseEpoch(mux.Vars(req)["epoch"])
	if err != nil {
		return err
	}
	addr, err := tallyAddress(mux.Vars(req)["address"])
	if err != nil {
		return err
	}
	weight, found, err := c.feed.WeightOf(epoch, *addr)
	if err != nil {
		if err == contribution.ErrNotSealed {
			return utils.NotFound(err)
		}
		return err
	}
	if !found {
		return utils.WriteJSON(w, utils.M{"found": false})
	}
	return utils.WriteJSON(w, utils.M{"found": true, "weight": weight.String()})
}

func (c *Contributions) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()
	sub.Path("/next").
		Methods(http.MethodGet).
		Name("contributions_get_next").
		HandlerFunc(utils.WrapHandlerFunc(c.handleGetNext))
	sub.Path("/{epoch}").
		Methods(http.MethodGet).
		Name("contributions_get_report").
		HandlerFunc(utils.WrapHandlerFunc(c.handleGetReport))
	sub.Path("/{epoch}/weights/{address}").
		Methods(http.MethodGet).
		Name("contributions_get_weight").
		HandlerFunc(utils.WrapHandlerFunc(c.handleGetWeight))
}
