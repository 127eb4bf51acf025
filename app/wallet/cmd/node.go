package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/siertrichain/siertrichain/business/web/errs"
	"github.com/siertrichain/siertrichain/foundation/blockchain/database"
	"github.com/siertrichain/siertrichain/foundation/blockchain/geometry"
)

var client = http.Client{Timeout: 10 * time.Second}

// submitTx posts the signed transaction to the node and returns the hash the
// node accepted.
func submitTx(tx database.Tx) (string, error) {
	data, err := json.Marshal(database.NewTxData(tx))
	if err != nil {
		return "", err
	}

	resp, err := client.Post(fmt.Sprintf("%s/v1/tx/submit", url), "application/json", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return "", err
	}

	var result struct {
		Status string `json:"status"`
		Hash   string `json:"hash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	return result.Hash, nil
}

// queryAsset retrieves the asset with the specified hash.
func queryAsset(hash string) (geometry.Triangle, error) {
	var tri geometry.Triangle
	if err := get(fmt.Sprintf("%s/v1/assets/hash/%s", url, hash), &tri); err != nil {
		return geometry.Triangle{}, err
	}

	return tri, nil
}

func get(url string, v any) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return err
	}

	return json.NewDecoder(resp.Body).Decode(v)
}

// checkResponse converts an error response of the node into an error.
func checkResponse(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	var er errs.Response
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("node responded %s", resp.Status)
	}

	if len(er.Fields) > 0 {
		return fmt.Errorf("%s: %v", er.Error, er.Fields)
	}

	return errors.New(er.Error)
}
