// Transport substrate: spec.md §1 treats the RPC library itself ("a library
// providing register, call, init, destroy, execute primitives") as an
// external collaborator, out of scope for this implementation. net/rpc's
// Register/Call/Dial/Close/Accept map onto those five primitives directly,
// so it is used here as the thin substrate underneath rpcproto's own
// argument codec; see DESIGN.md for why a third-party RPC framework was not
// substituted for it.
package rpcproto

import (
	"fmt"
	"net"
	"net/rpc"

	"github.com/reflexfs/reflexfs/internal/rfserrors"
)

// Envelope is the single opaque payload net/rpc ever sees: one encoded
// ArgVector addressed to one registered procedure name.
type Envelope struct {
	Proc string
	Args []byte
}

// Reply carries the encoded ArgVector back after a procedure runs.
type Reply struct {
	Args []byte
}

// dispatchService is the sole net/rpc service exposed by the server: every
// registered procedure is reached through its single Dispatch method, so
// "register" at the net/rpc level happens exactly once regardless of how
// many procedures rpcproto.Registry holds.
type dispatchService struct {
	registry *Registry
}

// Dispatch decodes the envelope, runs the matching handler, and re-encodes
// the (now mutated) ArgVector as the reply.
func (s *dispatchService) Dispatch(req Envelope, reply *Reply) error {
	h, ok := s.registry.Lookup(req.Proc)
	if !ok {
		return fmt.Errorf("rpcproto: unknown procedure %q", req.Proc)
	}
	av, err := Decode(req.Args)
	if err != nil {
		return err
	}
	if err := h(av); err != nil {
		return err
	}
	reply.Args = av.Encode()
	return nil
}

// Server is the RPC runtime's server half: init, register, execute, destroy.
type Server struct {
	registry *Registry
	rpcSrv   *rpc.Server
	listener net.Listener
}

// NewServer constructs a Server over a procedure registry. This is the
// "register" primitive: it binds the registry's procedures to the net/rpc
// service exposed on the wire.
func NewServer(registry *Registry) (*Server, error) {
	rpcSrv := rpc.NewServer()
	if err := rpcSrv.RegisterName("Service", &dispatchService{registry: registry}); err != nil {
		return nil, &rfserrors.RegistrationFailure{Proc: "Service", Err: err}
	}
	return &Server{registry: registry, rpcSrv: rpcSrv}, nil
}

// Init binds a listener on addr (the "init" primitive).
func (s *Server) Init(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = lis
	return nil
}

// Addr returns the address the server is bound to, valid after Init.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Execute blocks accepting and serving connections until the listener is
// closed (the "execute" primitive, equivalent to rpcExecute's event loop).
func (s *Server) Execute() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return err
		}
		go s.rpcSrv.ServeConn(conn)
	}
}

// Destroy tears the server down (the "destroy" primitive).
func (s *Server) Destroy() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// Client is the RPC runtime's client half: init, call, destroy.
type Client struct {
	conn *rpc.Client
}

// DialClient connects to a Server's address (the "init" primitive on the
// client side, equivalent to rpcClientInit).
func DialClient(addr string) (*Client, error) {
	conn, err := rpc.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// Call invokes proc with av's current arguments and merges the reply back
// into av (the "call" primitive, equivalent to rpcCall). A non-nil error
// here always means the transport itself failed, never that the remote
// procedure ran and reported a negative status — that is recorded in av's
// trailing status argument instead.
func (c *Client) Call(proc string, av *ArgVector) error {
	req := Envelope{Proc: proc, Args: av.Encode()}
	var reply Reply
	if err := c.conn.Call("Service.Dispatch", req, &reply); err != nil {
		return &rfserrors.TransportFailure{Err: err}
	}
	if err := av.DecodeInto(reply.Args); err != nil {
		return &rfserrors.TransportFailure{Err: err}
	}
	return nil
}

// Destroy tears the client connection down (the "destroy" primitive,
// equivalent to rpcClientDestroy).
func (c *Client) Destroy() error {
	return c.conn.Close()
}
