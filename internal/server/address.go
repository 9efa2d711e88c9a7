package server

import (
	"fmt"
	"net"
)

// LocalAddress 返回本机访问地址，例如 https://localhost:5000。
func LocalAddress(hostname string, port int, tls bool) string {
	if hostname == "" {
		hostname = "localhost"
	}
	return fmt.Sprintf("%s://%s", scheme(tls), net.JoinHostPort(hostname, fmt.Sprint(port)))
}

// NetworkAddress 返回第一个非回环 IPv4 地址对应的访问地址，找不到时返回 "-"。
func NetworkAddress(port int, tls bool) string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "-"
	}
	return networkAddressFrom(addrs, port, tls)
}

func networkAddressFrom(addrs []net.Addr, port int, tls bool) string {
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return fmt.Sprintf("%s://%s", scheme(tls), net.JoinHostPort(ip4.String(), fmt.Sprint(port)))
		}
	}
	return "-"
}

func scheme(tls bool) string {
	if tls {
		return "https"
	}
	return "http"
}
