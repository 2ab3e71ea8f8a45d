package ipc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/rezon/mediasession/backend/browse"
)

var ErrPingFail = errors.New("ping failed")

const baseURL = "http://mediasession"

type Client struct {
	httpC   *http.Client
	baseURL string
}

// Connect attempts to connect to the IPC socket as client.
func Connect() (*Client, error) {
	client := &Client{
		httpC: &http.Client{
			Transport: &http.Transport{
				DialContext: func(context.Context, string, string) (net.Conn, error) {
					return Dial()
				},
			},
		},
		baseURL: baseURL,
	}
	if err := client.Ping(); err != nil {
		return nil, err
	}
	return client, nil
}

func (c *Client) Ping() error {
	if c.makeSimpleRequest(http.MethodGet, PingPath) != nil {
		return ErrPingFail
	}
	return nil
}

func (c *Client) Play() error {
	return c.makeSimpleRequest(http.MethodPost, PlayPath)
}

func (c *Client) Pause() error {
	return c.makeSimpleRequest(http.MethodPost, PausePath)
}

func (c *Client) PlayPause() error {
	return c.makeSimpleRequest(http.MethodPost, PlayPausePath)
}

func (c *Client) Next() error {
	return c.makeSimpleRequest(http.MethodPost, NextPath)
}

func (c *Client) Previous() error {
	return c.makeSimpleRequest(http.MethodPost, PreviousPath)
}

func (c *Client) Forward() error {
	return c.makeSimpleRequest(http.MethodPost, ForwardPath)
}

func (c *Client) Rewind() error {
	return c.makeSimpleRequest(http.MethodPost, RewindPath)
}

func (c *Client) Stop() error {
	return c.makeSimpleRequest(http.MethodPost, StopPath)
}

func (c *Client) SeekTo(ms int64) error {
	return c.makeSimpleRequest(http.MethodPost, SeekToPath(ms))
}

// UpdateState sends a state patch to the running session, starting one if
// none is active.
func (c *Client) UpdateState(p StatePatch) error {
	return c.makeJSONRequest(http.MethodPost, SessionStatePath, p, nil)
}

func (c *Client) EndSession() error {
	return c.makeSimpleRequest(http.MethodPost, SessionStopPath)
}

func (c *Client) Session() (SessionInfo, error) {
	var info SessionInfo
	err := c.makeJSONRequest(http.MethodGet, SessionPath, nil, &info)
	return info, err
}

func (c *Client) Children(parentID string) ([]browse.Item, error) {
	var r ItemsResponse
	err := c.makeJSONRequest(http.MethodGet, BuildChildrenPath(parentID), nil, &r)
	return r.Items, err
}

func (c *Client) Search(query string) ([]browse.Item, error) {
	var r ItemsResponse
	err := c.makeJSONRequest(http.MethodGet, BuildSearchPath(query), nil, &r)
	return r.Items, err
}

func (c *Client) Select(req SelectRequest) error {
	return c.makeJSONRequest(http.MethodPost, BrowseSelectPath, req, nil)
}

func (c *Client) SetItems(req ItemsRequest) error {
	return c.makeJSONRequest(http.MethodPut, BrowseItemsPath, req, nil)
}

// Events reads the action stream, calling f for each event until ctx is
// done, the stream ends or f returns an error.
func (c *Client) Events(ctx context.Context, f func(ActionEvent) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+EventsPath, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpC.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return readErrResponse(resp)
	}

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		var e ActionEvent
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return fmt.Errorf("malformed event: %w", err)
		}
		if err := f(e); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func (c *Client) makeSimpleRequest(method string, path string) error {
	return c.makeJSONRequest(method, path, nil, nil)
}

func (c *Client) makeJSONRequest(method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpC.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return readErrResponse(resp)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func readErrResponse(resp *http.Response) error {
	var r Response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil || r.Error == "" {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return errors.New(r.Error)
}
