// Package config provides configuration parsing for vstore.
//
// The configuration is stored in vstore.json (or vstore.toml) in the working
// directory or one of its parents. This package handles loading, saving,
// defaults and validation.
//
// # Configuration File Structure
//
//	{
//	  "server": {"address": "127.0.0.1:7600"},
//	  "log": {"level": "debug", "format": "json"},
//	  "metrics": {"enabled": true, "namespace": "vstore", "path": "/metrics"},
//	  "tracing": {"enabled": false},
//	  "transport": {
//	    "baseURL": "https://api.example.com",
//	    "timeout": "10s",
//	    "headers": {"Authorization": "Bearer ..."}
//	  },
//	  "s3": {"region": "us-east-1", "bucket": "fixtures"},
//	  "stores": {
//	    "user": {
//	      "values": {"selected": null},
//	      "actions": {
//	        "fetchUser": {"kind": "http", "path": "/users/{0}"},
//	        "loadProfile": {"kind": "s3", "key": "profiles/{0}.json"}
//	      }
//	    }
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Address:", cfg.Server.Address)
package config
