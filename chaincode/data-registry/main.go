package main

import (
	"log"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/chaincode/data-registry/dataregistry"
)

func main() {
	registryChaincode, err := contractapi.NewChaincode(&dataregistry.SmartContract{})
	if err != nil {
		log.Panicf("Error creating DataRegistry chaincode: %v", err)
	}

	if err := registryChaincode.Start(); err != nil {
		log.Panicf("Error starting DataRegistry chaincode: %v", err)
	}
}
