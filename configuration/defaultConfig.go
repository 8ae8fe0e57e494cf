package configuration

// defaultConfig loaded anyway when participant starts
// may be extended/replaced by user-provided config later
var defaultConfig = []byte(`
version: v0.0.1
system:
  log:
    console:
      level: info # available levels: debug, info, warn, error, dpanic, panic, fatal
  http:
    port: "8080"
  systree:
    enabled: true
    base: $SYS
    interval: 5s
participant:
  domain: 0
  vendor: volant
  announceInterval: 1s
  leaseDuration: 10s
  heartbeatInterval: 200ms
  replay:
    depth: 1024
    maxAge: 30s
  tombstones: 4096
  pendingEndpoints: 1024
transport:
  type: udp
  udp:
    listen: 0.0.0.0:7410
    group: 239.255.0.1:7400
    loopback: true
persistence:
  type: mem
`)
