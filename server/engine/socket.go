// socket creating, only low level functional
package engine

import (
	"fmt"
	"net"
	"os"
	"syscall"
)

const (
	backlog = 128 // backlog for listening
)

// Listen creates an IPv4 TCP socket with SO_REUSEADDR, binds host:port and
// starts listening with a fixed backlog. Port 0 picks a free port, see Addr.
func Listen(host string, port int) (net.Listener, error) {
	addr, err := resolve4(host)
	if err != nil {
		return nil, err
	}

	fd, err := listenSocket(addr, port)
	if err != nil {
		return nil, err
	}

	// net.FileListener dups fd, so the file is closed right after
	f := os.NewFile(uintptr(fd), fmt.Sprintf("tcp4:%s:%d", host, port))
	ln, err := net.FileListener(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("engine: listener from fd: %w", err)
	}
	return ln, nil
}

// create new socket, bind and start listening
func listenSocket(addr [4]byte, port int) (int, error) {
	// SOCK_STREAM = TCP
	fd, err := syscall.Socket(syscall.AF_INET, syscall.SOCK_STREAM, 0)
	if err != nil {
		return -1, fmt.Errorf("engine: socket: %w", err)
	}
	syscall.CloseOnExec(fd)

	if err := syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1); err != nil {
		syscall.Close(fd)
		return -1, fmt.Errorf("engine: reuseaddr: %w", err)
	}

	if err := syscall.Bind(fd, &syscall.SockaddrInet4{ // bind socket to addr:port
		Port: port,
		Addr: addr,
	}); err != nil {
		syscall.Close(fd)
		return -1, fmt.Errorf("engine: bind %v:%d: %w", net.IP(addr[:]), port, err)
	}
	if err := syscall.Listen(fd, backlog); err != nil { // start listening on addr:port
		syscall.Close(fd)
		return -1, fmt.Errorf("engine: listen: %w", err)
	}

	return fd, nil
}

// empty host means all interfaces
func resolve4(host string) ([4]byte, error) {
	var out [4]byte
	if host == "" {
		return out, nil
	}

	ip := net.ParseIP(host).To4()
	if ip == nil {
		ipa, err := net.ResolveIPAddr("ip4", host)
		if err != nil {
			return out, fmt.Errorf("engine: resolve %q: %w", host, err)
		}
		ip = ipa.IP.To4()
	}
	if ip == nil {
		return out, fmt.Errorf("engine: %q has no ipv4 address", host)
	}

	copy(out[:], ip)
	return out, nil
}
