package dia

// OracleABI is the ABI for the DIA key/value oracle contract. Only
// includes getValue, the single read this adapter performs.
const OracleABI = `[
	{
		"inputs": [
			{"internalType": "string", "name": "key", "type": "string"}
		],
		"name": "getValue",
		"outputs": [
			{"internalType": "uint128", "name": "value", "type": "uint128"},
			{"internalType": "uint128", "name": "timestamp", "type": "uint128"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

// ValueDecimals is the fixed-point scale of DIA oracle values.
const ValueDecimals = 8
