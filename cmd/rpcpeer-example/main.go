// Program rpcpeer-example serves a "sum" method over JSON-RPC on a
// websocket, the same demo shape as the teacher's websocket example
// but built on duplexrpc.ConnectJSONRPC and transport/wsconn.
//
// Test it with https://github.com/oliver006/ws-client:
//
//	$ ws-client ws://localhost:8080
//	[00:00] >> {"jsonrpc": "2.0", "method": "sum", "params": [[1, 2, 3]], "id": "1"}
//	[00:00] << {"id":"1","jsonrpc":"2.0","result":6}
package main

import (
	"net/http"
	"os"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/websocket"

	"github.com/crtv-io/duplexrpc"
	"github.com/crtv-io/duplexrpc/transport/wsconn"
)

func main() {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))

	handlers := duplexrpc.Handlers{
		"sum": duplexrpc.Func(func(nums []int) int {
			total := 0
			for _, n := range nums {
				total += n
			}
			return total
		}),
	}

	var upgrader websocket.Upgrader
	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		wsConn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			panic(err)
		}

		// Each accepted websocket becomes its own peer: the demo only
		// registers request handlers, but either side could call back
		// into the other with conn.Notify/conn.Request.
		duplexrpc.ConnectJSONRPC(wsconn.New(wsConn), handlers, nil,
			duplexrpc.WithLogger(logger),
		)
	})

	http.ListenAndServe("0.0.0.0:8080", nil)
}
