// Package config loads reactor.yaml, the configuration of the reactor
// command.
//
// # Configuration File Structure
//
//	runtime:
//	  sync: false
//	  silent: false
//	  production: false
//	  maxUpdateCount: 100
//	log:
//	  level: info
//	  format: text
//	timeline:
//	  capacity: 4096
//	inspector:
//	  addr: localhost:7070
//	metrics:
//	  namespace: reactor
//	store:
//	  kind: s3
//	  s3:
//	    bucket: my-bucket
//	    prefix: timelines/
//	    region: us-east-1
//	  redis:
//	    addr: localhost:6379
//	    ttl: 24h
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	rt := reactive.New(cfg.RuntimeOptions()...)
package config
