// Package config provides configuration parsing for minirest.
//
// The configuration is stored in minirest.json, by default in the working
// directory. Every field is optional; command line flags override the file.
//
// # Configuration File Structure
//
//	{
//	  "host": "0.0.0.0",
//	  "buffers": {
//	    "initialSize": 1024,
//	    "growthStep": 1024,
//	    "chunkSize": 1024,
//	    "maxMessageSize": 1048576
//	  },
//	  "readTimeout": "10s",
//	  "writeTimeout": "10s",
//	  "metricsAddr": "127.0.0.1:9090",
//	  "tracerName": "minirest",
//	  "log": {
//	    "level": "info",
//	    "format": "text"
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.LoadOrDefault(".")
//	if err != nil {
//	    return err
//	}
//	srvCfg, err := cfg.ServerConfig(port)
package config
