package contracts

// ABI fragments for the two external contracts, limited to the entry points
// this system invokes. The stakeholder category is submitted as the enum's
// wire value (uint8).
const tokenABI = `[
  {
    "name": "approve",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "spender", "type": "address"},
      {"name": "amount", "type": "uint256"}
    ],
    "outputs": [{"name": "", "type": "bool"}]
  },
  {
    "name": "mint",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "to", "type": "address"},
      {"name": "amount", "type": "uint256"}
    ],
    "outputs": []
  }
]`

const vestingABI = `[
  {
    "name": "createVestingSchedule",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "amount", "type": "uint256"},
      {"name": "beneficiary", "type": "address"},
      {"name": "stakeholderType", "type": "uint8"},
      {"name": "releaseTime", "type": "uint256"},
      {"name": "organisationName", "type": "string"},
      {"name": "description", "type": "string"}
    ],
    "outputs": []
  },
  {
    "name": "whitelistAddress",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [{"name": "beneficiary", "type": "address"}],
    "outputs": []
  }
]`
