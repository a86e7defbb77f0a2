package rpccall

import (
	"errors"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"

	"tradepilot/pkg/agentrpc"
)

// Server exposes an ExecutionAgentService over JSON-RPC.
type Server struct {
	rpcServer *rpc.Server
}

func NewServer(service agentrpc.ExecutionAgentService) (*Server, error) {
	s := rpc.NewServer()
	if err := s.RegisterName(agentrpc.ServiceName, service); err != nil {
		return nil, err
	}
	return &Server{rpcServer: s}, nil
}

// ServeConn serves a single connection and blocks until it closes.
func (s *Server) ServeConn(conn net.Conn) {
	s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
}

// Serve accepts connections on listener until it is closed.
func (s *Server) Serve(listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			continue
		}
		go s.ServeConn(conn)
	}
}

func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer listener.Close()
	return s.Serve(listener)
}
