// Copyright (c) 2025 The Tally developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package client is a typed HTTP client for the tally API: feed and
// report reads, claimable amounts and settlement history.
package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"

	"github.com/epochtally/tally/claimdb"
	"github.com/epochtally/tally/contribution"
	"github.com/epochtally/tally/rewardfeed"
	"github.com/epochtally/tally/tally"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrNot200Status = errors.New("not 200 status code")
)

// Client talks to a tallyd API endpoint over HTTP.
type Client struct {
	url string
	c   *http.Client
}

// New creates a new Client with the provided URL.
func New(url string) *Client {
	return NewWithHTTP(url, http.DefaultClient)
}

func NewWithHTTP(url string, c *http.Client) *Client {
	return &Client{
		url: url,
		c:   c,
	}
}

// Report is a feed report read: lifecycle status plus the summary once
// sealed.
type Report struct {
	Epoch   uint64                `json:"epoch"`
	Status  string                `json:"status"`
	Summary *contribution.Summary `json:"summary,omitempty"`
}

// RewardReport is the equal-split feed's report read.
type RewardReport struct {
	Epoch   uint64                  `json:"epoch"`
	Status  string                  `json:"status"`
	Summary *rewardfeed.EpochReward `json:"summary,omitempty"`
}

// Claimable is a staker's settlement outlook.
type Claimable struct {
	Staker               tally.Address `json:"staker"`
	Claimable            string        `json:"claimable"`
	LastSettledEpoch     uint64        `json:"lastSettledEpoch"`
	NextUnprocessedEpoch uint64        `json:"nextUnprocessedEpoch"`
}

func (c *Client) httpGET(url string) ([]byte, error) {
	resp, err := c.c.Get(url)
	if err != nil {
		return nil, fmt.Errorf("http request failed - %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("%w: %d", ErrNot200Status, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// NextEpoch retrieves the contribution feed's next epoch.
func (c *Client) NextEpoch() (uint64, error) {
	body, err := c.httpGET(c.url + "/contributions/next")
	if err != nil {
		return 0, fmt.Errorf("unable to retrieve next epoch - %w", err)
	}
	var resp struct {
		NextEpoch uint64 `json:"nextEpoch"`
	}
	if err = json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("unable to unmarshal next epoch - %w", err)
	}
	return resp.NextEpoch, nil
}

// GetReport retrieves the epoch's contribution report.
func (c *Client) GetReport(epoch uint64) (*Report, error) {
	body, err := c.httpGET(c.url + "/contributions/" + strconv.FormatUint(epoch, 10))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve report - %w", err)
	}
	var report Report
	if err = json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("unable to unmarshal report - %w", err)
	}
	return &report, nil
}

// GetWeight retrieves the staker's weight in the sealed epoch. found is
// false when the staker has no entry.
func (c *Client) GetWeight(epoch uint64, staker tally.Address) (weight *big.Int, found bool, err error) {
	body, err := c.httpGET(c.url + "/contributions/" + strconv.FormatUint(epoch, 10) + "/weights/" + staker.String())
	if err != nil {
		return nil, false, fmt.Errorf("unable to retrieve weight - %w", err)
	}
	var resp struct {
		Found  bool   `json:"found"`
		Weight string `json:"weight"`
	}
	if err = json.Unmarshal(body, &resp); err != nil {
		return nil, false, fmt.Errorf("unable to unmarshal weight - %w", err)
	}
	if !resp.Found {
		return nil, false, nil
	}
	weight, ok := new(big.Int).SetString(resp.Weight, 10)
	if !ok {
		return nil, false, fmt.Errorf("unable to parse weight %q", resp.Weight)
	}
	return weight, true, nil
}

// GetRewardReport retrieves the epoch's equal-split reward report.
func (c *Client) GetRewardReport(epoch uint64) (*RewardReport, error) {
	body, err := c.httpGET(c.url + "/rewards/" + strconv.FormatUint(epoch, 10))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve reward report - %w", err)
	}
	var report RewardReport
	if err = json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("unable to unmarshal reward report - %w", err)
	}
	return &report, nil
}

// GetClaimable retrieves the staker's settlement outlook.
func (c *Client) GetClaimable(staker tally.Address) (*Claimable, error) {
	body, err := c.httpGET(c.url + "/claims/" + staker.String() + "/claimable")
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve claimable - %w", err)
	}
	var claimable Claimable
	if err = json.Unmarshal(body, &claimable); err != nil {
		return nil, fmt.Errorf("unable to unmarshal claimable - %w", err)
	}
	return &claimable, nil
}

// GetHistory retrieves the staker's settlement history, newest first.
func (c *Client) GetHistory(staker tally.Address, limit, offset uint64) ([]*claimdb.Record, error) {
	url := fmt.Sprintf("%s/claims/%s/history?limit=%d&offset=%d", c.url, staker, limit, offset)
	body, err := c.httpGET(url)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve history - %w", err)
	}
	var records []*claimdb.Record
	if err = json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("unable to unmarshal history - %w", err)
	}
	return records, nil
}

// Healthy reports whether the endpoint responds to the health probe.
func (c *Client) Healthy() (bool, error) {
	body, err := c.httpGET(c.url + "/health")
	if err != nil {
		return false, err
	}
	var resp struct {
		Healthy bool `json:"healthy"`
	}
	if err = json.Unmarshal(body, &resp); err != nil {
		return false, err
	}
	return resp.Healthy, nil
}
