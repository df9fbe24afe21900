package main

import (
	"bufio"
	"fmt"
	"net"

	"github.com/Simsys/espcand/internal/datagram"
	"github.com/Simsys/espcand/internal/proto"
)

const datagramCap = 128

// Client is a thin wrapper around a bridge TCP connection speaking the
// same $tag,...\n protocol the bridge itself implements, reusing
// internal/proto and internal/datagram directly rather than a duplicate
// client-side codec.
type Client struct {
	conn net.Conn
	rd   *bufio.Reader
}

func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, rd: bufio.NewReader(conn)}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

// SendLine parses a raw textual "$tag,..." line (no trailing newline
// required) and writes its canonical wire form to the bridge.
func (c *Client) SendLine(line string) error {
	deser, err := proto.FromBytes(datagramCap, []byte(line+"\n"))
	if err != nil {
		return err
	}
	item, err := datagram.Deserialize(deser)
	if err != nil {
		return fmt.Errorf("parse %q: %w", line, err)
	}
	ser := proto.NewSer(datagramCap)
	if err := datagram.Serialize(item, ser); err != nil {
		return err
	}
	_, err = c.conn.Write(ser.Bytes())
	return err
}

// ReadItem blocks for the next complete datagram from the bridge.
func (c *Client) ReadItem() (datagram.Item, error) {
	raw, err := c.rd.ReadBytes('\n')
	if err != nil {
		return datagram.Item{}, err
	}
	deser, err := proto.FromBytes(datagramCap, raw)
	if err != nil {
		return datagram.Item{}, err
	}
	return datagram.Deserialize(deser)
}
