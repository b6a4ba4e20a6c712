package server

import (
	"net"
	"net/http"
	"strings"
)

// ------------------------------------------------------------
// IP Utility Functions
//
// webhook 수신 서버는 보통 ALB 또는 CloudFront 뒤에 배치되므로
// RemoteAddr 만으로는 "실제 발신자 IP"를 알 수 없다.
// 아래 로직은 proxy 표준 헤더 기반으로
// 가장 신뢰할 수 있는 발신자 IP를 추출한다.
// ------------------------------------------------------------

// unknownIP: 어떤 경로로도 IP 를 얻지 못했을 때의 sentinel.
const unknownIP = "unknown"

// isPublicIP:
//   - private / loopback / link-local 등이 아닌 경우 true
//   - X-Forwarded-For에서 내부 hop IP를 제외하기 위해 필요
func isPublicIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if ip.IsPrivate() {
		return false
	}
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return false
	}
	return true
}

// safeParseIP:
//   - 공백/빈 값 대응
//   - 잘못된 값이 들어오면 nil 반환
func safeParseIP(s string) net.IP {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return net.ParseIP(s)
}

// ------------------------------------------------------------
// clientIP:
//
// "실제 발신자"의 IP를 추출. best-effort 이며 레코드 필드용.
// 우선순위:
//  1. X-Forwarded-For → 첫 번째 public IP
//  2. X-Real-IP → 유효한 IP
//  3. CloudFront-Viewer-Address → 포트 제거 후 public IP
//  4. RemoteAddr fallback (로컬/사설망 직결 포함, 유효하면 그대로)
//
// 아무것도 얻지 못하면 "unknown".
// ------------------------------------------------------------
func clientIP(r *http.Request) string {

	// 1) X-Forwarded-For (ALB 등)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// 예: "203.0.113.1, 10.0.1.24"
		parts := strings.Split(xff, ",")
		for _, part := range parts {
			ip := safeParseIP(part)
			if isPublicIP(ip) {
				return ip.String()
			}
		}
	}

	// 2) X-Real-IP (nginx 계열 proxy)
	if real := safeParseIP(r.Header.Get("X-Real-IP")); real != nil {
		return real.String()
	}

	// 3) CloudFront-Viewer-Address
	// 예: "203.0.113.55:44321" 또는 "2404:6800:4004::200e:44321"
	if cf := r.Header.Get("CloudFront-Viewer-Address"); cf != "" {
		host := cf
		// 마지막 ":" 를 기준으로 포트 제거 (IPv6 포함 대응)
		if i := strings.LastIndex(cf, ":"); i != -1 {
			host = cf[:i]
		}
		ip := safeParseIP(host)
		if isPublicIP(ip) {
			return ip.String()
		}
	}

	// 4) RemoteAddr fallback — 직결 환경(로컬 테스트 등)에서는
	//    사설/loopback 이라도 그대로 기록한다.
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		if ip := safeParseIP(host); ip != nil {
			return ip.String()
		}
	}

	return unknownIP
}
