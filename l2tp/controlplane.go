package l2tp

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// controlPlane speaks the IP-encapsulated control protocol: a datagram
// socket on the L2TP IP protocol number, so each read or write carries
// exactly one encapsulated frame.
type controlPlane struct {
	local unix.Sockaddr
	fd    int
	file  *os.File
	rc    syscall.RawConn
}

func newControlPlane(listen string) (*controlPlane, error) {
	sa, err := peerSockaddr(listen)
	if err != nil {
		return nil, err
	}

	family := unix.AF_INET
	if _, ok := sa.(*unix.SockaddrL2TPIP6); ok {
		family = unix.AF_INET6
	}

	fd, err := unix.Socket(family, unix.SOCK_DGRAM, unix.IPPROTO_L2TP)
	if err != nil {
		return nil, fmt.Errorf("socket: %v", err)
	}
	if err = unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to set socket nonblocking: %v", err)
	}
	if _, err = unix.FcntlInt(uintptr(fd), unix.F_SETFD, unix.FD_CLOEXEC); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to set socket cloexec: %v", err)
	}
	if err = unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind: %v", err)
	}

	file := os.NewFile(uintptr(fd), "l2tp")
	rc, err := file.SyscallConn()
	if err != nil {
		file.Close()
		return nil, err
	}

	return &controlPlane{
		local: sa,
		fd:    fd,
		file:  file,
		rc:    rc,
	}, nil
}

func (cp *controlPlane) recvFrom(b []byte) (n int, from unix.Sockaddr, err error) {
	cerr := cp.rc.Read(func(fd uintptr) bool {
		n, from, err = unix.Recvfrom(int(fd), b, 0)
		return err != unix.EAGAIN && err != unix.EWOULDBLOCK
	})
	if err != nil {
		return 0, nil, err
	}
	return n, from, cerr
}

func (cp *controlPlane) sendTo(b []byte, addr unix.Sockaddr) error {
	var err error
	cerr := cp.rc.Write(func(fd uintptr) bool {
		err = unix.Sendto(int(fd), b, 0, addr)
		return err != unix.EAGAIN && err != unix.EWOULDBLOCK
	})
	if err != nil {
		return err
	}
	return cerr
}

func (cp *controlPlane) close() {
	if cp.file != nil {
		cp.file.Close()
		cp.file = nil
	}
}
