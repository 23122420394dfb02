package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ContractDefinitions models the structure of configs/contracts.yaml. The
// network identity and the two contract addresses are fixed for the lifetime
// of the process.
type ContractDefinitions struct {
	Network   NetworkDefinition `yaml:"network"`
	Contracts ContractAddresses `yaml:"contracts"`
}

// NetworkDefinition names the single network the daemon is willing to
// transact on.
type NetworkDefinition struct {
	Name    string `yaml:"name"`
	ChainID uint64 `yaml:"chain_id"`
	RPCURL  string `yaml:"rpc_url"`
}

// ContractAddresses carries the fixed token and vesting contract addresses.
type ContractAddresses struct {
	Token   string `yaml:"token"`
	Vesting string `yaml:"vesting"`
}

// LoadContractDefinitions parses the YAML file containing network and
// contract metadata.
func LoadContractDefinitions(path string) (ContractDefinitions, error) {
	if strings.TrimSpace(path) == "" {
		return ContractDefinitions{}, fmt.Errorf("合约配置路径为空")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return ContractDefinitions{}, fmt.Errorf("读取合约配置失败: %w", err)
	}

	var defs ContractDefinitions
	if err := yaml.Unmarshal(content, &defs); err != nil {
		return ContractDefinitions{}, fmt.Errorf("解析合约配置失败: %w", err)
	}

	defs.applyDefaults()
	return defs, nil
}

// applyDefaults 使用原始部署环境的参数补全缺省字段。
func (d *ContractDefinitions) applyDefaults() {
	if d.Network.Name == "" {
		d.Network.Name = "Sepolia"
	}
	if d.Network.ChainID == 0 {
		d.Network.ChainID = 11155111
	}
}
