// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import (
	"context"
	"net"
	"strconv"

	"github.com/edgebench/sigbench/errors"
)

// ConnectionProvider is a function that returns a net.Conn connected to an
// MQTT server that is ready to read to and write from. The returned net.Conn
// must be safe for concurrent writes.
type ConnectionProvider func(context.Context) (net.Conn, error)

// TCPConnection is a ConnectionProvider that connects to an MQTT server over
// TCP.
func TCPConnection(hostname string, port int) ConnectionProvider {
	addr := net.JoinHostPort(hostname, strconv.Itoa(port))
	return func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, &errors.Error{
				Message:       "error opening TCP connection",
				Kind:          errors.Connection,
				NestedError:   err,
				PropertyName:  "address",
				PropertyValue: addr,
			}
		}
		return conn, nil
	}
}
