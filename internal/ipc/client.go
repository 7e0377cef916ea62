package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Start requests the daemon to begin mirroring.
func (c *Client) Start() (*StartResponse, error) {
	var resp StartResponse
	if err := c.client.Call("Shadowplay.Start", StartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to halt mirroring.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Shadowplay.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status and current watch snapshot.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Shadowplay.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CacheList returns every cached folder identity.
func (c *Client) CacheList() (*CacheListResponse, error) {
	var resp CacheListResponse
	if err := c.client.Call("Shadowplay.CacheList", CacheListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CacheInvalidate removes one folder's cached identity.
func (c *Client) CacheInvalidate(folderPath string) (*CacheInvalidateResponse, error) {
	var resp CacheInvalidateResponse
	req := CacheInvalidateRequest{FolderPath: folderPath}
	if err := c.client.Call("Shadowplay.CacheInvalidate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CacheClear drops the whole identity cache.
func (c *Client) CacheClear() (*CacheClearResponse, error) {
	var resp CacheClearResponse
	if err := c.client.Call("Shadowplay.CacheClear", CacheClearRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Shadowplay.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
