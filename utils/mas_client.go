package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"net/url"
	"time"
)

// MASClient resolves dataset names to file paths through the metadata API.
type MASClient struct {
	MASAddress string
	client     *http.Client
	verbose    bool
}

func NewMASClient(masAddress string, verbose bool) *MASClient {
	return &MASClient{
		MASAddress: masAddress,
		client:     &http.Client{Timeout: 30 * time.Second},
		verbose:    verbose,
	}
}

type masLookup struct {
	Error string `json:"error"`
	Path  string `json:"path"`
}

// Lookup returns the path of the named dataset. Unknown names give
// ErrDatasetNotFound.
func (o *MASClient) Lookup(ctx context.Context, name string) (string, error) {
	reqURL := fmt.Sprintf("http://%s/?lookup=%s", o.MASAddress, url.QueryEscape(name))
	if o.verbose {
		log.Printf("querying MAS for dataset: %v", reqURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var result masLookup
	if err = json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("MAS returned %s: %v", resp.Status, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: %s", ErrDatasetNotFound, name)
	}
	if len(result.Error) > 0 {
		return "", fmt.Errorf("MAS error: %s", result.Error)
	}
	if len(result.Path) == 0 {
		return "", fmt.Errorf("%w: %s", ErrDatasetNotFound, name)
	}
	return result.Path, nil
}
